package client

import (
	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/keepalive"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/transport"
)

// Snapshot is an immutable view of the client after one loop turn.
type Snapshot struct {
	// Seq increases with every published snapshot.
	Seq uint64
	// Status is the connection state.
	Status transport.State
	// Reconnect holds the current attempt counters.
	Reconnect transport.ReconnectState
	// Err is the reported connectivity error: the last abnormal close
	// while reconnecting, the terminal *transport.ExhaustedError, or nil.
	Err error
	// Latency is the last keepalive measurement, unknown while closed.
	Latency keepalive.Latency
	// Mirror is the reconciled backend state.
	Mirror *reconcile.Mirror
	// History holds the most recent decoded messages, oldest first.
	History []codec.Message
	// HistoryTotal counts every decoded message, including evicted ones.
	HistoryTotal uint64
}

// Reconnecting reports whether the connection dropped and a retry is
// pending or in flight.
func (s *Snapshot) Reconnecting() bool {
	switch s.Status {
	case transport.Closed:
		return true
	case transport.Connecting:
		return s.Reconnect.Attempt > 0
	default:
		return false
	}
}

// Update is delivered to subscribers after a loop turn.
type Update struct {
	Snapshot *Snapshot
	// Message is the decoded message handled in the turn, nil for
	// connection or seed turns.
	Message codec.Message
	// Changes lists the mirror changes Message caused.
	Changes []reconcile.Change
}

// publish stores a new snapshot and fans it out. Called from the loop, or
// from Dispose when the loop never started.
func (c *Client) publish(msg codec.Message, changes []reconcile.Change) {
	c.seq++
	s := &Snapshot{
		Seq:          c.seq,
		Status:       c.machine.State(),
		Reconnect:    c.machine.Reconnect(),
		Err:          c.machine.Err(),
		Latency:      c.probe.Latency(),
		Mirror:       c.mirror,
		History:      c.history.Items(),
		HistoryTotal: c.history.Pushed(),
	}
	c.snapshot.Store(s)
	c.broker.publish(Update{Snapshot: s, Message: msg, Changes: changes})
}
