package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/pithecene-io/warroom/transport"
)

const waitTimeout = 2 * time.Second

var errLocalClose = errors.New("fake conn: closed locally")

// fakeConn is a scripted transport.Conn.
type fakeConn struct {
	frames chan []byte
	ends   chan error
	writes chan []byte

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex
	reason    string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 256),
		ends:   make(chan error, 1),
		writes: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.frames:
		return frame, nil
	case err := <-f.ends:
		return nil, err
	case <-f.closed:
		return nil, errLocalClose
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(_ context.Context, frame []byte) error {
	select {
	case <-f.closed:
		return errLocalClose
	default:
	}
	f.writes <- frame
	return nil
}

func (f *fakeConn) Close(reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.reason = reason
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

// push delivers an inbound frame.
func (f *fakeConn) push(frame []byte) { f.frames <- frame }

// end makes the next Read fail with err. Frames already pushed may or may
// not be read first.
func (f *fakeConn) end(err error) { f.ends <- err }

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) nextWrite(t *testing.T) []byte {
	t.Helper()
	select {
	case w := <-f.writes:
		return w
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an outbound frame")
		return nil
	}
}

func (f *fakeConn) expectNoWrite(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case w := <-f.writes:
		t.Fatalf("unexpected outbound frame %s", w)
	case <-time.After(wait):
	}
}

type dialReply struct {
	conn transport.Conn
	err  error
}

// fakeDialer hands each Dial to the test, which answers it. Dial ignores
// ctx so a connect can resolve after disposal.
type fakeDialer struct {
	calls chan chan dialReply
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{calls: make(chan chan dialReply, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (transport.Conn, error) {
	reply := make(chan dialReply, 1)
	d.calls <- reply
	r := <-reply
	if r.conn == nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) next(t *testing.T) chan dialReply {
	t.Helper()
	select {
	case reply := <-d.calls:
		return reply
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

// accept answers the next dial with a fresh connection.
func (d *fakeDialer) accept(t *testing.T) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	d.next(t) <- dialReply{conn: conn}
	return conn
}

// refuse answers the next dial with an error.
func (d *fakeDialer) refuse(t *testing.T, err error) {
	t.Helper()
	d.next(t) <- dialReply{err: err}
}

func (d *fakeDialer) expectNoDial(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case reply := <-d.calls:
		reply <- dialReply{err: errors.New("unexpected dial")}
		t.Fatal("unexpected dial")
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, c *Client, what string, cond func(*Snapshot) bool) *Snapshot {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		s := c.Snapshot()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s (status=%s attempt=%d err=%v)",
				what, s.Status, s.Reconnect.Attempt, s.Err)
		}
		time.Sleep(time.Millisecond)
	}
}

func isStatus(want transport.State) func(*Snapshot) bool {
	return func(s *Snapshot) bool { return s.Status == want }
}

func frame(kind, data string) []byte {
	if data == "" {
		return []byte(fmt.Sprintf(`{"type":%q,"timestamp":"2026-03-01T12:00:00Z"}`, kind))
	}
	return []byte(fmt.Sprintf(`{"type":%q,"timestamp":"2026-03-01T12:00:00Z","data":%s}`, kind, data))
}

func timelineFrame(i int) []byte {
	return frame("timeline_event", fmt.Sprintf(
		`{"agent":"Phill","domain":"detection","role":"detector","action":"detect","message":"event-%d","timestamp":"2026-03-01T12:00:00Z"}`, i))
}

func abnormal(reason string) error {
	return websocket.CloseError{Code: websocket.StatusInternalError, Reason: reason}
}

func normalClose() error {
	return websocket.CloseError{Code: websocket.StatusNormalClosure}
}
