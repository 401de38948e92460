// Package transport holds the connection lifecycle of the duplex channel to
// the backend: the state machine, linear reconnect backoff, close
// classification and the websocket dialer.
//
// The Machine is not safe for concurrent use. It is owned by a single event
// loop (see package client) which feeds it dial and close outcomes.
package transport

// State is the lifecycle state of the duplex connection.
type State int

// Connection states.
const (
	// Idle is the state before Start and after Dispose.
	Idle State = iota
	// Connecting means a dial is in flight.
	Connecting
	// Open means the handshake completed and frames flow.
	Open
	// Closed means the connection dropped and a retry may be pending.
	Closed
	// Errored is terminal: reconnect attempts are exhausted.
	Errored
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions happen without a new
// client.
func (s State) Terminal() bool {
	return s == Errored
}
