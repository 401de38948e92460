package types

import "time"

// AgentStatus is the operational status of an agent as reported by the backend.
type AgentStatus string

// Agent status constants.
const (
	AgentStable   AgentStatus = "stable"
	AgentActive   AgentStatus = "active"
	AgentIncident AgentStatus = "incident"
)

// Valid reports whether s is one of the known agent statuses.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStable, AgentActive, AgentIncident:
		return true
	}
	return false
}

// AgentRecord is the mirrored state of one backend agent.
// Name is the unique key; the roster is fixed when a mirror is created.
type AgentRecord struct {
	Name   string      `json:"name" yaml:"name"`
	Status AgentStatus `json:"status" yaml:"status"`
	Domain string      `json:"domain" yaml:"domain"`
	// ActiveRoomID is the war room the agent currently participates in.
	ActiveRoomID *string `json:"war_room_id,omitempty" yaml:"war_room_id,omitempty"`
	// LastChangedAt is the local time of the last reconciled status change.
	LastChangedAt *time.Time `json:"last_changed_at,omitempty" yaml:"last_changed_at,omitempty"`
}

// InRoom reports whether the agent is assigned to a war room.
func (a AgentRecord) InRoom() bool {
	return a.ActiveRoomID != nil && *a.ActiveRoomID != ""
}
