// Package metrics provides per-session counters for the sync client.
//
// The Collector accumulates counters for one client session. It is a leaf
// package with no internal dependencies; envelope kinds are recorded as
// plain strings.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Inbound frames
	FramesReceived  int64
	FramesMalformed int64
	EnvelopesByKind map[string]int64
	Unrecognized    int64

	// Connection lifecycle
	DialAttempts     int64
	DialFailures     int64
	Opens            int64
	ClosesNormal     int64
	ClosesAbnormal   int64
	RetriesScheduled int64
	Exhausted        int64

	// Outbound
	SendsDropped int64

	// Keepalive
	PingsSent     int64
	PongsReceived int64
	// LastLatencyMs is the most recent measured latency, -1 if unknown.
	LastLatencyMs int64

	// Downstream
	NotificationsPublished int64
	NotificationsFailed    int64
	ArchiveWriteSuccess    int64
	ArchiveWriteFailure    int64

	// Dimensions (informational, set at construction)
	SessionID string
	Endpoint  string
}

// Collector accumulates metrics during a single client session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	framesReceived  int64
	framesMalformed int64
	envelopesByKind map[string]int64
	unrecognized    int64

	dialAttempts     int64
	dialFailures     int64
	opens            int64
	closesNormal     int64
	closesAbnormal   int64
	retriesScheduled int64
	exhausted        int64

	sendsDropped int64

	pingsSent     int64
	pongsReceived int64
	lastLatencyMs int64

	notificationsPublished int64
	notificationsFailed    int64
	archiveWriteSuccess    int64
	archiveWriteFailure    int64

	sessionID string
	endpoint  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, endpoint string) *Collector {
	return &Collector{
		envelopesByKind: make(map[string]int64),
		lastLatencyMs:   -1,
		sessionID:       sessionID,
		endpoint:        endpoint,
	}
}

func (c *Collector) add(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Inbound frames ---

// IncFramesReceived records one raw inbound frame, before decoding.
func (c *Collector) IncFramesReceived() {
	if c == nil {
		return
	}
	c.add(&c.framesReceived)
}

// IncFramesMalformed records a frame that failed to decode.
func (c *Collector) IncFramesMalformed() {
	if c == nil {
		return
	}
	c.add(&c.framesMalformed)
}

// IncEnvelope records a decoded envelope of the given kind.
func (c *Collector) IncEnvelope(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.envelopesByKind[kind]++
	c.mu.Unlock()
}

// IncUnrecognized records an envelope whose kind is not understood.
func (c *Collector) IncUnrecognized() {
	if c == nil {
		return
	}
	c.add(&c.unrecognized)
}

// --- Connection lifecycle ---

// IncDialAttempts records a dial start.
func (c *Collector) IncDialAttempts() {
	if c == nil {
		return
	}
	c.add(&c.dialAttempts)
}

// IncDialFailures records a failed dial.
func (c *Collector) IncDialFailures() {
	if c == nil {
		return
	}
	c.add(&c.dialFailures)
}

// IncOpens records a completed handshake.
func (c *Collector) IncOpens() {
	if c == nil {
		return
	}
	c.add(&c.opens)
}

// IncCloses records the end of an open connection.
func (c *Collector) IncCloses(normal bool) {
	if c == nil {
		return
	}
	if normal {
		c.add(&c.closesNormal)
		return
	}
	c.add(&c.closesAbnormal)
}

// IncRetriesScheduled records a scheduled reconnect.
func (c *Collector) IncRetriesScheduled() {
	if c == nil {
		return
	}
	c.add(&c.retriesScheduled)
}

// IncExhausted records that reconnect attempts ran out.
func (c *Collector) IncExhausted() {
	if c == nil {
		return
	}
	c.add(&c.exhausted)
}

// --- Outbound ---

// IncSendsDropped records a send attempted while not connected.
func (c *Collector) IncSendsDropped() {
	if c == nil {
		return
	}
	c.add(&c.sendsDropped)
}

// --- Keepalive ---

// IncPingsSent records an outbound ping.
func (c *Collector) IncPingsSent() {
	if c == nil {
		return
	}
	c.add(&c.pingsSent)
}

// ObservePong records a pong and the latency it measured.
// ms < 0 means the pong did not match an outstanding ping.
func (c *Collector) ObservePong(ms int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pongsReceived++
	if ms >= 0 {
		c.lastLatencyMs = ms
	}
	c.mu.Unlock()
}

// ClearLatency marks latency unknown after a disconnect.
func (c *Collector) ClearLatency() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastLatencyMs = -1
	c.mu.Unlock()
}

// --- Downstream ---

// IncNotifications records the outcome of one adapter publish.
func (c *Collector) IncNotifications(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.add(&c.notificationsPublished)
		return
	}
	c.add(&c.notificationsFailed)
}

// IncArchiveWrite records the outcome of one archive write call.
// A single write of N events counts once.
func (c *Collector) IncArchiveWrite(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.add(&c.archiveWriteSuccess)
		return
	}
	c.add(&c.archiveWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{LastLatencyMs: -1}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.envelopesByKind))
	for k, v := range c.envelopesByKind {
		byKind[k] = v
	}

	return Snapshot{
		FramesReceived:  c.framesReceived,
		FramesMalformed: c.framesMalformed,
		EnvelopesByKind: byKind,
		Unrecognized:    c.unrecognized,

		DialAttempts:     c.dialAttempts,
		DialFailures:     c.dialFailures,
		Opens:            c.opens,
		ClosesNormal:     c.closesNormal,
		ClosesAbnormal:   c.closesAbnormal,
		RetriesScheduled: c.retriesScheduled,
		Exhausted:        c.exhausted,

		SendsDropped: c.sendsDropped,

		PingsSent:     c.pingsSent,
		PongsReceived: c.pongsReceived,
		LastLatencyMs: c.lastLatencyMs,

		NotificationsPublished: c.notificationsPublished,
		NotificationsFailed:    c.notificationsFailed,
		ArchiveWriteSuccess:    c.archiveWriteSuccess,
		ArchiveWriteFailure:    c.archiveWriteFailure,

		SessionID: c.sessionID,
		Endpoint:  c.endpoint,
	}
}
