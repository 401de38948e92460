package types

// SessionMeta identifies one client session for logging and notifications.
type SessionMeta struct {
	// SessionID is a random identifier assigned at client start.
	SessionID string
	// Endpoint is the duplex channel URL the session connects to.
	Endpoint string
	// Backend is the HTTP base URL, when known.
	Backend *string
}
