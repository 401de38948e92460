// Package relay forwards client updates to notification adapters and the
// archive.
//
// A Relay is a single subscriber of a client. Each update's changes are
// archived as one batch and mapped to zero or more notifications. When the
// client gives up reconnecting, one connectivity_exhausted notification is
// published. Downstream failures are logged and counted; they never stop
// the relay.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/warroom/adapter"
	"github.com/pithecene-io/warroom/client"
	"github.com/pithecene-io/warroom/clock"
	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/log"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

// DefaultPublishTimeout bounds one downstream publish or archive write.
const DefaultPublishTimeout = 10 * time.Second

// Source is the client surface a relay consumes. *client.Client
// satisfies it.
type Source interface {
	Subscribe(buffer int) (<-chan client.Update, func())
	Snapshot() *client.Snapshot
	Terminated() <-chan struct{}
}

// ChangeWriter persists reconciled changes. *archive.Archive satisfies it.
type ChangeWriter interface {
	WriteChanges(ctx context.Context, changes []reconcile.Change) error
}

// Config configures a Relay. Adapter and Archive are each optional.
type Config struct {
	Session types.SessionMeta
	Adapter adapter.Adapter
	Archive ChangeWriter
	Logger  *log.Logger
	Metrics *metrics.Collector
	Clock   clock.Clock
	// Buffer is the subscription buffer (default client.DefaultSubscriberBuffer).
	Buffer         int
	PublishTimeout time.Duration
}

// Relay forwards updates downstream.
type Relay struct {
	config    Config
	log       *log.Logger
	clock     clock.Clock
	exhausted bool
}

// New creates a relay.
func New(cfg Config) *Relay {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	r := &Relay{config: cfg, log: cfg.Logger, clock: cfg.Clock}
	if r.log == nil {
		r.log = log.Nop()
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	return r
}

// Attachment is a relay subscribed to one source.
type Attachment struct {
	relay       *Relay
	src         Source
	updates     <-chan client.Update
	unsubscribe func()
}

// Attach subscribes to src. Every update src publishes after Attach
// returns is delivered to the attachment's Run, so callers attach before
// starting the client.
func (r *Relay) Attach(src Source) *Attachment {
	updates, unsubscribe := src.Subscribe(r.config.Buffer)
	return &Attachment{relay: r, src: src, updates: updates, unsubscribe: unsubscribe}
}

// Run consumes src until its update stream closes or ctx is done. It
// subscribes when called; use Attach to subscribe ahead of time.
func (r *Relay) Run(ctx context.Context, src Source) error {
	return r.Attach(src).Run(ctx)
}

// Run drains the subscription until the update stream closes or ctx is
// done. It returns nil when the stream closes and ctx.Err() on
// cancellation. Run unsubscribes before returning.
func (a *Attachment) Run(ctx context.Context) error {
	defer a.unsubscribe()

	terminated := a.src.Terminated()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-a.updates:
			if !ok {
				return nil
			}
			a.relay.Handle(ctx, u)
		case <-terminated:
			terminated = nil
			a.relay.handleExhausted(ctx, a.src.Snapshot())
		}
	}
}

// Handle forwards one update. Exported so callers that already hold an
// update stream can drive the relay directly.
func (r *Relay) Handle(ctx context.Context, u client.Update) {
	if len(u.Changes) > 0 && r.config.Archive != nil {
		actx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
		if err := r.config.Archive.WriteChanges(actx, u.Changes); err != nil {
			r.log.Warn("archive write failed", map[string]any{"error": err.Error()})
		}
		cancel()
	}

	for _, ch := range u.Changes {
		if n := r.notification(ch); n != nil {
			r.publish(ctx, n)
		}
	}

	if u.Snapshot != nil && u.Snapshot.Status == transport.Errored {
		r.handleExhausted(ctx, u.Snapshot)
	}
}

func (r *Relay) handleExhausted(ctx context.Context, s *client.Snapshot) {
	if r.exhausted || s == nil || s.Status != transport.Errored {
		return
	}
	r.exhausted = true

	n := r.base(adapter.EventConnectivityExhausted, r.clock.Now())
	n.Attempts = s.Reconnect.MaxAttempts
	var exhausted *transport.ExhaustedError
	if errors.As(s.Err, &exhausted) {
		n.Reason = exhausted.Error()
		n.Attempts = exhausted.Attempts
	} else if s.Err != nil {
		n.Reason = s.Err.Error()
	}
	r.publish(ctx, n)
}

// notification maps a change to its notification, or nil when the change
// is not notified.
func (r *Relay) notification(ch reconcile.Change) *adapter.Notification {
	switch ch.Kind {
	case reconcile.ChangeAgentStatus:
		if ch.Agent == nil || ch.Agent.Status == ch.PreviousStatus {
			return nil
		}
		n := r.base(adapter.EventAgentStatusChanged, ch.At)
		n.Agent = ch.Agent.Name
		n.Status = string(ch.Agent.Status)
		n.PreviousStatus = string(ch.PreviousStatus)
		if ch.Agent.InRoom() {
			n.RoomID = *ch.Agent.ActiveRoomID
		}
		return n
	case reconcile.ChangeRoomOpened, reconcile.ChangeRoomClosed:
		if ch.Room == nil {
			return nil
		}
		kind := adapter.EventRoomOpened
		if ch.Kind == reconcile.ChangeRoomClosed {
			kind = adapter.EventRoomClosed
		}
		n := r.base(kind, ch.At)
		n.RoomID = ch.Room.ID
		n.Status = string(ch.Room.Status)
		n.Participants = ch.Room.ParticipantNames
		if ch.Room.RelatedIncident != nil {
			n.IncidentID = *ch.Room.RelatedIncident
		}
		return n
	case reconcile.ChangeReset:
		return r.base(adapter.EventSystemReset, ch.At)
	default:
		return nil
	}
}

func (r *Relay) base(kind adapter.EventType, at time.Time) *adapter.Notification {
	return &adapter.Notification{
		ContractVersion: adapter.ContractVersion,
		EventType:       kind,
		SessionID:       r.config.Session.SessionID,
		Endpoint:        r.config.Session.Endpoint,
		Timestamp:       codec.FormatTime(at),
	}
}

func (r *Relay) publish(ctx context.Context, n *adapter.Notification) {
	if r.config.Adapter == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
	defer cancel()

	err := r.config.Adapter.Publish(pctx, n)
	r.config.Metrics.IncNotifications(err == nil)
	if err != nil {
		r.log.Warn("notification publish failed", map[string]any{
			"event_type": string(n.EventType),
			"error":      err.Error(),
		})
		return
	}
	r.log.Debug("notification published", map[string]any{"event_type": string(n.EventType)})
}
