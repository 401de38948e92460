package types

import "time"

// RoomStatus is the lifecycle status of a war room.
type RoomStatus string

// Room status constants.
const (
	RoomActive RoomStatus = "active"
	RoomClosed RoomStatus = "closed"
)

// RoomRecord is the mirrored state of one collaboration (war) room.
type RoomRecord struct {
	ID               string     `json:"id" yaml:"id"`
	ParticipantNames []string   `json:"participants" yaml:"participants"`
	Status           RoomStatus `json:"status" yaml:"status"`
	RelatedIncident  *string    `json:"incident_id,omitempty" yaml:"incident_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at" yaml:"created_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty" yaml:"closed_at,omitempty"`
}
