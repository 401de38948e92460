package transport

import (
	"fmt"
	"time"
)

// DefaultBaseDelay is the backoff step between reconnect attempts.
const DefaultBaseDelay = time.Second

// DefaultMaxAttempts is the number of reconnect attempts before giving up.
const DefaultMaxAttempts = 5

// Backoff configures linear reconnect backoff: the n-th retry waits
// BaseDelay*n.
type Backoff struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultBackoff returns 1s steps with 5 attempts.
func DefaultBackoff() Backoff {
	return Backoff{BaseDelay: DefaultBaseDelay, MaxAttempts: DefaultMaxAttempts}
}

func (b Backoff) withDefaults() Backoff {
	if b.BaseDelay <= 0 {
		b.BaseDelay = DefaultBaseDelay
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultMaxAttempts
	}
	return b
}

// ReconnectState counts reconnect attempts since the last successful open.
type ReconnectState struct {
	Attempt     int
	MaxAttempts int
}

// Decision is the outcome of a close.
type Decision struct {
	// Retry is true when a new dial should follow after Delay.
	Retry bool
	// Delay is the wait before the next dial.
	Delay time.Duration
	// Attempt is the attempt number the retry will be.
	Attempt int
	// Err is the error to report: the abnormal close while retrying, the
	// ExhaustedError once terminal, nil after a normal close.
	Err error
}

// Machine is the connection state machine.
type Machine struct {
	backoff   Backoff
	state     State
	reconnect ReconnectState
	err       error
}

// NewMachine returns an Idle machine.
func NewMachine(b Backoff) *Machine {
	b = b.withDefaults()
	return &Machine{
		backoff:   b,
		reconnect: ReconnectState{MaxAttempts: b.MaxAttempts},
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Reconnect returns the attempt counters.
func (m *Machine) Reconnect() ReconnectState { return m.reconnect }

// Err returns the currently reported error, nil if none.
func (m *Machine) Err() error { return m.err }

// Start moves Idle to Connecting.
func (m *Machine) Start() error {
	if m.state != Idle {
		return fmt.Errorf("transport: start from %s", m.state)
	}
	m.state = Connecting
	return nil
}

// Opened records a completed handshake. The attempt count is reset and any
// reported error cleared.
func (m *Machine) Opened() error {
	if m.state != Connecting {
		return fmt.Errorf("transport: open from %s", m.state)
	}
	m.state = Open
	m.reconnect.Attempt = 0
	m.err = nil
	return nil
}

// Closed records the end of a connection or a failed dial and decides
// whether to retry. cause is nil for a normal closure.
//
// While attempts remain the attempt count is incremented and the machine
// stays Closed until Retry. Otherwise the machine becomes Errored.
func (m *Machine) Closed(cause *CloseError) Decision {
	if m.state != Open && m.state != Connecting {
		return Decision{Err: m.err}
	}
	m.state = Closed

	if m.reconnect.Attempt >= m.reconnect.MaxAttempts {
		exhausted := &ExhaustedError{Attempts: m.reconnect.Attempt, Last: cause}
		if cause != nil {
			exhausted.Reason = cause.Reason
		}
		m.state = Errored
		m.err = exhausted
		return Decision{Err: exhausted}
	}

	m.reconnect.Attempt++
	m.err = nil
	if cause != nil {
		m.err = cause
	}
	return Decision{
		Retry:   true,
		Delay:   m.backoff.BaseDelay * time.Duration(m.reconnect.Attempt),
		Attempt: m.reconnect.Attempt,
		Err:     m.err,
	}
}

// Retry moves Closed to Connecting once the backoff delay has elapsed.
func (m *Machine) Retry() error {
	if m.state != Closed {
		return fmt.Errorf("transport: retry from %s", m.state)
	}
	m.state = Connecting
	return nil
}

// Dispose forces Idle. A terminal error is kept so it stays observable.
func (m *Machine) Dispose() {
	m.state = Idle
}
