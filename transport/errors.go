package transport

import (
	"errors"
	"fmt"

	"nhooyr.io/websocket"
)

// StatusNoClose is the code recorded when a connection ended without a
// close frame (network failure, failed dial).
const StatusNoClose = int(websocket.StatusAbnormalClosure)

// CloseError describes an abnormal end of a connection.
// Normal closure (status 1000) never produces a CloseError.
type CloseError struct {
	// Code is the websocket close status, or StatusNoClose.
	Code int
	// Reason is the remote close reason, if one was sent.
	Reason string
	// Err is the underlying read or dial error.
	Err error
}

func (e *CloseError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("connection closed (code %d): %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("connection closed (code %d)", e.Code)
	}
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// Classify maps the error that ended a connection (or a dial) to a
// CloseError. It returns nil for a normal closure.
func Classify(err error) *CloseError {
	if err == nil {
		return nil
	}

	var ce websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.StatusNormalClosure {
			return nil
		}
		return &CloseError{Code: int(ce.Code), Reason: ce.Reason, Err: err}
	}

	var existing *CloseError
	if errors.As(err, &existing) {
		return existing
	}

	return &CloseError{Code: StatusNoClose, Err: err}
}

// ExhaustedError is the terminal error once reconnect attempts run out.
type ExhaustedError struct {
	// Attempts is the number of reconnect attempts made.
	Attempts int
	// Reason is the remote reason of the last disconnect, if any.
	Reason string
	// Last is the last abnormal close, nil if the last close was normal.
	Last *CloseError
}

func (e *ExhaustedError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("exhausted %d attempts", e.Attempts)
}

func (e *ExhaustedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// IsExhausted reports whether err is, or wraps, an ExhaustedError.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
