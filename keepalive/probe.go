// Package keepalive measures round-trip latency over the duplex channel.
//
// A Probe is owned by the client loop. While the connection is open the
// loop calls Ping on every interval tick and Pong for every inbound pong;
// on disconnect it calls Reset. Latency is "unknown" until the first pong
// after a ping, and again after every Reset.
package keepalive

import (
	"time"

	"github.com/pithecene-io/warroom/codec"
)

// DefaultInterval is the ping period.
const DefaultInterval = 5 * time.Second

// Latency is a published round-trip measurement. Known is false until a
// pong has matched a ping; a Known zero value means a 0ms measurement.
type Latency struct {
	Value time.Duration
	Known bool
}

// Milliseconds returns the measurement in whole milliseconds, or -1 when
// unknown.
func (l Latency) Milliseconds() int64 {
	if !l.Known {
		return -1
	}
	return l.Value.Milliseconds()
}

func (l Latency) String() string {
	if !l.Known {
		return "unknown"
	}
	return l.Value.String()
}

// Probe holds the keepalive state for one client.
type Probe struct {
	interval time.Duration

	lastPingAt  time.Time
	outstanding bool
	latency     Latency
	pings       int64
	pongs       int64
}

// NewProbe creates a probe with the given interval. Non-positive
// intervals use DefaultInterval.
func NewProbe(interval time.Duration) *Probe {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Probe{interval: interval}
}

// Interval returns the ping period.
func (p *Probe) Interval() time.Duration { return p.interval }

// Ping records now as the outstanding ping time and returns the frame to
// send. A ping sent while another is outstanding replaces it.
func (p *Probe) Ping(now time.Time) ([]byte, error) {
	frame, err := codec.EncodePing(now)
	if err != nil {
		return nil, err
	}
	p.lastPingAt = now
	p.outstanding = true
	p.pings++
	return frame, nil
}

// Pong matches a pong against the outstanding ping and publishes the
// latency. Returns false, leaving the latency unchanged, when no ping is
// outstanding.
func (p *Probe) Pong(now time.Time) (Latency, bool) {
	if !p.outstanding {
		return p.latency, false
	}
	elapsed := now.Sub(p.lastPingAt)
	if elapsed < 0 {
		elapsed = 0
	}
	p.latency = Latency{Value: elapsed.Truncate(time.Millisecond), Known: true}
	p.outstanding = false
	p.pongs++
	return p.latency, true
}

// Reset clears the outstanding ping and the published latency.
func (p *Probe) Reset() {
	p.lastPingAt = time.Time{}
	p.outstanding = false
	p.latency = Latency{}
}

// Latency returns the published measurement.
func (p *Probe) Latency() Latency { return p.latency }

// Outstanding reports whether a ping is awaiting its pong.
func (p *Probe) Outstanding() bool { return p.outstanding }

// Counts returns the number of pings sent and pongs matched.
func (p *Probe) Counts() (pings, pongs int64) { return p.pings, p.pongs }
