package types

// Version is the canonical project version.
// The CLI and the wire envelope handling share this version.
const Version = "0.3.0"
