// Package client is the real-time state synchronization client.
//
// A Client keeps one duplex connection to the backend, reconnects with
// linear backoff, decodes every inbound frame and folds it into an
// immutable reconcile.Mirror. All mutable state is owned by a single loop
// goroutine; dial results, inbound frames and timer expiries are posted to
// it as events and handled one at a time. Readers see consistent
// *Snapshot values published after every turn.
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/warroom/clock"
	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/keepalive"
	"github.com/pithecene-io/warroom/log"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/ring"
	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

// HistoryCapacity is the number of decoded messages kept in the history.
const HistoryCapacity = 100

const (
	inboxSize    = 64
	outboxSize   = 16
	writeTimeout = 5 * time.Second
)

var (
	// ErrDisposed is returned by operations on a disposed client.
	ErrDisposed = errors.New("client: disposed")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("client: already started")
)

// Recorder receives every raw inbound frame before decoding.
type Recorder interface {
	Record(receivedAt time.Time, frame []byte) error
}

// Options configures a Client.
type Options struct {
	// URL is the duplex endpoint (ws:// or wss://). Required.
	URL string
	// Dialer opens connections (default: transport.WebSocketDialer).
	Dialer transport.Dialer
	// Clock drives backoff and keepalive timers (default: real time).
	Clock clock.Clock
	// Backoff configures reconnects (default: 1s steps, 5 attempts).
	Backoff transport.Backoff
	// PingInterval is the keepalive period (default 5s).
	PingInterval time.Duration
	// Roster is the initial agent set. The mirror only tracks these names
	// until a Seed replaces them.
	Roster []types.AgentRecord
	// Logger receives diagnostics (default: discard).
	Logger *log.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
	// Recorder, if set, captures raw inbound frames.
	Recorder Recorder
}

// Client is the sync client. Create with New, then Start; always Dispose.
type Client struct {
	url      string
	dialer   transport.Dialer
	clock    clock.Clock
	log      *log.Logger
	metrics  *metrics.Collector
	recorder Recorder

	// Disposal token. Set before anything else on Dispose and checked at
	// the top of every loop turn and after every dial.
	disposed atomic.Bool

	mu      sync.Mutex
	started bool

	ctx    context.Context
	cancel context.CancelFunc

	inbox    chan event
	wake     chan struct{}
	done     chan struct{}
	terminal chan struct{}

	snapshot atomic.Pointer[Snapshot]
	broker   *broker

	// Loop-owned state. Only touched from run.
	machine    *transport.Machine
	probe      *keepalive.Probe
	mirror     *reconcile.Mirror
	history    *ring.Ring[codec.Message]
	gen        uint64
	seq        uint64
	conn       *liveConn
	retryTimer clock.Timer
	pingTimer  clock.Timer
}

// liveConn is the open connection and the goroutines serving it.
type liveConn struct {
	gen    uint64
	conn   transport.Conn
	cancel context.CancelFunc
	out    chan []byte
}

// New creates an idle client. It does not dial until Start.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("client: URL is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = &transport.WebSocketDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:      opts.URL,
		dialer:   opts.Dialer,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		recorder: opts.Recorder,
		ctx:      ctx,
		cancel:   cancel,
		inbox:    make(chan event, inboxSize),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		terminal: make(chan struct{}),
		broker:   newBroker(),
		machine:  transport.NewMachine(opts.Backoff),
		probe:    keepalive.NewProbe(opts.PingInterval),
		mirror:   reconcile.NewMirror(opts.Roster),
		history:  ring.New[codec.Message](HistoryCapacity),
	}
	c.publish(nil, nil)
	return c, nil
}

// Start begins connecting. It returns immediately; connection progress is
// observable through Snapshot and Subscribe.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed.Load() {
		return ErrDisposed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	if err := c.machine.Start(); err != nil {
		return err
	}
	go c.run()
	return nil
}

// Seed replaces the mirror with one built from a full-state document.
// Before Start the seed is applied directly and never blocks; afterwards
// it is handled by the loop in arrival order.
func (c *Client) Seed(state *types.SystemState) error {
	if state == nil {
		return errors.New("client: nil state")
	}

	c.mu.Lock()
	if !c.started {
		defer c.mu.Unlock()
		if c.disposed.Load() {
			return ErrDisposed
		}
		// The loop is not running yet; mu serializes with Start and Dispose.
		c.mirror = c.mirror.Seed(state)
		c.publish(nil, nil)
		return nil
	}
	c.mu.Unlock()

	if !c.post(seedRequest{state: state}) {
		return ErrDisposed
	}
	return nil
}

// Send transmits one frame if the connection is open. In any other state
// the frame is dropped and only a diagnostic is recorded.
func (c *Client) Send(frame []byte) {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		c.dropSend("client not started")
		return
	}
	if !c.post(sendRequest{frame: frame}) {
		c.dropSend("client disposed")
	}
}

// Snapshot returns the latest published state. Never nil.
func (c *Client) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Subscribe returns a stream of updates published after each loop turn.
// A subscriber that falls more than buffer updates behind misses updates;
// Snapshot always has the latest state. Call the returned func to stop.
func (c *Client) Subscribe(buffer int) (<-chan Update, func()) {
	return c.broker.subscribe(buffer)
}

// Terminated is closed once reconnect attempts are exhausted.
func (c *Client) Terminated() <-chan struct{} {
	return c.terminal
}

// Done is closed once the client is disposed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Dispose tears the client down: no further dials, no further state
// changes, timers stopped and the live connection closed. It blocks until
// teardown completes and is safe to call more than once.
func (c *Client) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		<-c.done
		return
	}

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	if !started {
		c.machine.Dispose()
		c.cancel()
		c.publish(nil, nil)
		c.broker.close()
		close(c.done)
		return
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
	<-c.done
}

// post delivers ev to the loop. Returns false once the client is gone.
func (c *Client) post(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.inbox <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) dropSend(reason string) {
	c.metrics.IncSendsDropped()
	c.log.Warn("send dropped", map[string]any{"reason": reason})
}

// barrier returns after every event posted before it has been handled.
func (c *Client) barrier() {
	ack := make(chan struct{})
	if !c.post(barrierRequest{ack: ack}) {
		return
	}
	select {
	case <-ack:
	case <-c.done:
	}
}
