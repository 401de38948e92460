package types

import "time"

// Severity is an optional severity label attached to timeline events.
type Severity string

// Known severities. The backend may send others; they are kept verbatim.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// TimelineEvent is one entry of the activity timeline.
type TimelineEvent struct {
	Agent     string         `json:"agent" yaml:"agent" msgpack:"agent"`
	Domain    string         `json:"domain" yaml:"domain" msgpack:"domain"`
	Role      string         `json:"role" yaml:"role" msgpack:"role"`
	Action    string         `json:"action" yaml:"action" msgpack:"action"`
	Message   string         `json:"message" yaml:"message" msgpack:"message"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp" msgpack:"timestamp"`
	Severity  *Severity      `json:"severity,omitempty" yaml:"severity,omitempty" msgpack:"severity,omitempty"`
	Data      map[string]any `json:"data,omitempty" yaml:"data,omitempty" msgpack:"data,omitempty"`
}
