// Package adapter defines the notification boundary.
//
// Adapters push mirror changes (agent status, room lifecycle, resets,
// connectivity loss) to downstream systems. Delivery is best-effort; a
// failed publish is logged and counted by the caller but never stops the
// client.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// ContractVersion is stamped on every notification.
const ContractVersion = "1"

// EventType discriminates notifications.
type EventType string

// Notification event types.
const (
	EventAgentStatusChanged    EventType = "agent_status_changed"
	EventRoomOpened            EventType = "room_opened"
	EventRoomClosed            EventType = "room_closed"
	EventSystemReset           EventType = "system_reset"
	EventConnectivityExhausted EventType = "connectivity_exhausted"
)

// Notification is the payload published for one observable change.
// Fields not relevant to EventType are omitted.
type Notification struct {
	ContractVersion string    `json:"contract_version"`
	EventType       EventType `json:"event_type"`
	SessionID       string    `json:"session_id"`
	Endpoint        string    `json:"endpoint,omitempty"`
	Timestamp       string    `json:"timestamp"` // ISO 8601

	Agent          string   `json:"agent,omitempty"`
	Status         string   `json:"status,omitempty"`
	PreviousStatus string   `json:"previous_status,omitempty"`
	RoomID         string   `json:"war_room_id,omitempty"`
	Participants   []string `json:"participants,omitempty"`
	IncidentID     string   `json:"incident_id,omitempty"`

	// Reason and Attempts are set for connectivity_exhausted.
	Reason   string `json:"reason,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// Adapter publishes notifications to a downstream system.
type Adapter interface {
	// Publish sends one notification. Must respect ctx cancellation.
	Publish(ctx context.Context, n *Notification) error

	// Close releases adapter resources.
	Close() error
}

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultBackoff is the delay before the first retry. It doubles on each
// subsequent retry.
const DefaultBackoff = 500 * time.Millisecond

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when fn returns an error for which permanent
// reports true, or when ctx is done.
func Retry(ctx context.Context, retries int, backoff time.Duration, permanent func(error) bool, fn func(context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}
		if i > 0 {
			timer := time.NewTimer(backoff << uint(i-1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
