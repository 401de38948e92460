package client

import (
	"context"
	"errors"

	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

// event is one unit of loop work. Connection-scoped events carry the
// generation of the dial that produced them; events from an older
// generation are ignored.
type event interface{ isEvent() }

type dialResult struct {
	gen  uint64
	conn transport.Conn
	err  error
}

type frameReceived struct {
	gen   uint64
	frame []byte
}

type readEnded struct {
	gen uint64
	err error
}

type retryDue struct{ gen uint64 }

type pingDue struct{ gen uint64 }

type seedRequest struct{ state *types.SystemState }

type sendRequest struct{ frame []byte }

type barrierRequest struct{ ack chan struct{} }

func (dialResult) isEvent()     {}
func (frameReceived) isEvent()  {}
func (readEnded) isEvent()      {}
func (retryDue) isEvent()       {}
func (pingDue) isEvent()        {}
func (seedRequest) isEvent()    {}
func (sendRequest) isEvent()    {}
func (barrierRequest) isEvent() {}

func (c *Client) run() {
	c.dial()
	c.publish(nil, nil)

	for {
		select {
		case ev := <-c.inbox:
			if c.disposed.Load() {
				c.teardown()
				return
			}
			c.handle(ev)
		case <-c.wake:
			c.teardown()
			return
		}
	}
}

func (c *Client) handle(ev event) {
	switch ev := ev.(type) {
	case dialResult:
		c.handleDial(ev)
	case frameReceived:
		c.handleFrame(ev)
	case readEnded:
		c.handleReadEnded(ev)
	case retryDue:
		c.handleRetry(ev)
	case pingDue:
		c.handlePing(ev)
	case seedRequest:
		c.mirror = c.mirror.Seed(ev.state)
		c.publish(nil, nil)
	case sendRequest:
		c.handleSend(ev.frame)
	case barrierRequest:
		close(ev.ack)
	}
}

// dial starts a new connection attempt under a fresh generation.
func (c *Client) dial() {
	c.gen++
	gen := c.gen
	c.metrics.IncDialAttempts()
	c.log.Debug("dialing", map[string]any{"attempt": c.machine.Reconnect().Attempt})

	go func() {
		conn, err := c.dialer.Dial(c.ctx, c.url)
		delivered := c.post(dialResult{gen: gen, conn: conn, err: err})
		if conn != nil && (!delivered || c.disposed.Load()) {
			// The loop may also close it during teardown; a second close
			// just fails.
			_ = conn.Close("client disposed")
		}
	}()
}

func (c *Client) handleDial(ev dialResult) {
	if ev.gen != c.gen || c.machine.State() != transport.Connecting {
		if ev.conn != nil {
			go func() { _ = ev.conn.Close("stale connection") }()
		}
		return
	}

	if ev.err != nil {
		c.metrics.IncDialFailures()
		c.log.Warn("dial failed", map[string]any{"error": ev.err.Error()})
		c.closed(transport.Classify(ev.err))
		return
	}

	if err := c.machine.Opened(); err != nil {
		c.log.Error("unexpected open", map[string]any{"error": err.Error()})
		return
	}
	c.metrics.IncOpens()
	c.log.Info("connection open", nil)

	ctx, cancel := context.WithCancel(c.ctx)
	lc := &liveConn{gen: ev.gen, conn: ev.conn, cancel: cancel, out: make(chan []byte, outboxSize)}
	c.conn = lc
	go c.readLoop(ctx, lc)
	go c.writeLoop(ctx, lc)

	c.schedulePing()
	c.publish(nil, nil)
}

func (c *Client) handleFrame(ev frameReceived) {
	if c.conn == nil || ev.gen != c.conn.gen {
		return
	}
	now := c.clock.Now()
	c.metrics.IncFramesReceived()

	if c.recorder != nil {
		if err := c.recorder.Record(now, ev.frame); err != nil {
			c.log.Warn("capture failed", map[string]any{"error": err.Error()})
		}
	}

	msg, err := codec.Decode(ev.frame)
	if err != nil {
		c.metrics.IncFramesMalformed()
		fields := map[string]any{"error": err.Error()}
		var fe *codec.FrameError
		if errors.As(err, &fe) {
			fields["kind"] = fe.Kind.String()
			if fe.Type != "" {
				fields["type"] = fe.Type
			}
		}
		c.log.Debug("dropping malformed frame", fields)
		return
	}

	kind := msg.Meta().Type
	c.metrics.IncEnvelope(string(kind))
	c.history.Push(msg)

	switch msg.(type) {
	case codec.Pong:
		if latency, ok := c.probe.Pong(now); ok {
			c.metrics.ObservePong(latency.Milliseconds())
		} else {
			c.metrics.ObservePong(-1)
		}
	case codec.Unrecognized:
		c.metrics.IncUnrecognized()
		c.log.Debug("unrecognized message", map[string]any{"type": string(kind)})
	}

	next, changes := reconcile.Step(c.mirror, msg, now)
	c.mirror = next
	c.publish(msg, changes)
}

func (c *Client) handleReadEnded(ev readEnded) {
	if c.conn == nil || ev.gen != c.conn.gen {
		return
	}
	c.dropConn("")

	cause := transport.Classify(ev.err)
	c.metrics.IncCloses(cause == nil)
	fields := map[string]any{}
	if cause != nil {
		fields["code"] = cause.Code
		fields["error"] = cause.Error()
	}
	c.log.Info("connection closed", fields)

	c.closed(cause)
}

// closed feeds a close (or failed dial) to the machine and schedules the
// retry it decides on.
func (c *Client) closed(cause *transport.CloseError) {
	d := c.machine.Closed(cause)
	if !d.Retry {
		c.metrics.IncExhausted()
		fields := map[string]any{"attempts": c.machine.Reconnect().Attempt}
		if d.Err != nil {
			fields["error"] = d.Err.Error()
		}
		c.log.Error("reconnect attempts exhausted", fields)
		c.publish(nil, nil)
		close(c.terminal)
		return
	}

	c.metrics.IncRetriesScheduled()
	c.log.Info("reconnect scheduled", map[string]any{
		"attempt": d.Attempt,
		"delay":   d.Delay.String(),
	})

	gen := c.gen
	c.retryTimer = c.clock.AfterFunc(d.Delay, func() {
		c.post(retryDue{gen: gen})
	})
	c.publish(nil, nil)
}

func (c *Client) handleRetry(ev retryDue) {
	if ev.gen != c.gen || c.machine.State() != transport.Closed {
		return
	}
	c.retryTimer = nil
	if err := c.machine.Retry(); err != nil {
		c.log.Error("unexpected retry", map[string]any{"error": err.Error()})
		return
	}
	c.dial()
	c.publish(nil, nil)
}

func (c *Client) schedulePing() {
	gen := c.conn.gen
	c.pingTimer = c.clock.AfterFunc(c.probe.Interval(), func() {
		c.post(pingDue{gen: gen})
	})
}

func (c *Client) handlePing(ev pingDue) {
	if c.conn == nil || ev.gen != c.conn.gen || c.machine.State() != transport.Open {
		return
	}
	c.schedulePing()

	frame, err := c.probe.Ping(c.clock.Now())
	if err != nil {
		c.log.Error("encode ping", map[string]any{"error": err.Error()})
		return
	}
	c.metrics.IncPingsSent()
	c.enqueue(frame)
}

func (c *Client) handleSend(frame []byte) {
	if c.machine.State() != transport.Open || c.conn == nil {
		c.dropSend("connection " + c.machine.State().String())
		return
	}
	c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) {
	select {
	case c.conn.out <- frame:
	default:
		c.dropSend("outbound queue full")
	}
}

// dropConn stops serving the live connection: keepalive reset, timers
// stopped, reader and writer cancelled. A non-empty reason closes the
// connection with a normal closure first.
func (c *Client) dropConn(reason string) {
	if c.pingTimer != nil {
		c.pingTimer.Stop()
		c.pingTimer = nil
	}
	c.probe.Reset()
	c.metrics.ClearLatency()

	lc := c.conn
	c.conn = nil
	if lc == nil {
		return
	}
	if reason != "" {
		_ = lc.conn.Close(reason)
	}
	lc.cancel()
}

// teardown runs once, on the loop goroutine, after the disposed token is
// set.
func (c *Client) teardown() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.dropConn("client disposed")
	c.machine.Dispose()
	c.cancel()

	c.publish(nil, nil)
	c.broker.close()
	close(c.done)

	// Connections delivered but never handled.
	for {
		select {
		case ev := <-c.inbox:
			if r, ok := ev.(dialResult); ok && r.conn != nil {
				_ = r.conn.Close("client disposed")
			}
			if b, ok := ev.(barrierRequest); ok {
				close(b.ack)
			}
		default:
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, lc *liveConn) {
	for {
		frame, err := lc.conn.Read(ctx)
		if err != nil {
			c.post(readEnded{gen: lc.gen, err: err})
			return
		}
		if !c.post(frameReceived{gen: lc.gen, frame: frame}) {
			return
		}
	}
}

func (c *Client) writeLoop(ctx context.Context, lc *liveConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-lc.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := lc.conn.Write(wctx, frame)
			cancel()
			if err != nil {
				c.log.Warn("write failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
