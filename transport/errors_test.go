package transport

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"nhooyr.io/websocket"
)

func TestClassify(t *testing.T) {
	network := errors.New("connection reset by peer")

	tests := []struct {
		name       string
		err        error
		wantNil    bool
		wantCode   int
		wantReason string
	}{
		{name: "nil", err: nil, wantNil: true},
		{
			name:    "normal closure",
			err:     websocket.CloseError{Code: websocket.StatusNormalClosure, Reason: "bye"},
			wantNil: true,
		},
		{
			name:    "wrapped normal closure",
			err:     fmt.Errorf("read: %w", websocket.CloseError{Code: websocket.StatusNormalClosure}),
			wantNil: true,
		},
		{
			name:       "going away",
			err:        websocket.CloseError{Code: websocket.StatusGoingAway, Reason: "restart"},
			wantCode:   int(websocket.StatusGoingAway),
			wantReason: "restart",
		},
		{
			name:       "application code",
			err:        websocket.CloseError{Code: 4000, Reason: "kicked"},
			wantCode:   4000,
			wantReason: "kicked",
		},
		{name: "network error", err: network, wantCode: StatusNoClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Classify() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Classify() = nil")
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", got.Code, tt.wantCode)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if !errors.Is(got, tt.err) {
				t.Error("CloseError does not wrap the source error")
			}
		})
	}
}

func TestCloseError_Message(t *testing.T) {
	got := (&CloseError{Code: 4000, Reason: "kicked"}).Error()
	if !strings.Contains(got, "4000") || !strings.Contains(got, "kicked") {
		t.Errorf("Error() = %q", got)
	}
	got = (&CloseError{Code: StatusNoClose, Err: errors.New("eof")}).Error()
	if !strings.Contains(got, "eof") {
		t.Errorf("Error() = %q", got)
	}
}

func TestExhaustedError(t *testing.T) {
	err := fmt.Errorf("watch: %w", &ExhaustedError{Attempts: 5})
	if !IsExhausted(err) {
		t.Error("IsExhausted() = false for wrapped error")
	}
	if IsExhausted(errors.New("other")) {
		t.Error("IsExhausted() = true for unrelated error")
	}
	if got := (&ExhaustedError{Attempts: 3, Reason: "maintenance"}).Error(); got != "maintenance" {
		t.Errorf("Error() = %q, want remote reason", got)
	}
}
