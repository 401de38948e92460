package codec

import (
	"encoding/json"

	"github.com/pithecene-io/warroom/types"
)

// Message is a decoded inbound frame. The concrete type is exactly one of
// StatusUpdate, WarRoomUpdate, TimelineEntry, SystemReset, Pong or
// Unrecognized; consumers switch on it exhaustively.
type Message interface {
	Meta() Envelope
	message()
}

// StatusUpdate reports an agent status change.
type StatusUpdate struct {
	Envelope
	Name   string
	Status types.AgentStatus
	// RoomID is nil when the payload carries no war room.
	RoomID *string
}

// WarRoomUpdate carries the full current state of one war room.
type WarRoomUpdate struct {
	Envelope
	Room types.RoomRecord
}

// TimelineEntry appends one event to the activity timeline.
type TimelineEntry struct {
	Envelope
	Event types.TimelineEvent
}

// SystemReset clears rooms and timeline and returns agents to stable.
type SystemReset struct {
	Envelope
}

// Pong answers a keepalive ping.
type Pong struct {
	Envelope
}

// Unrecognized is any envelope whose type is not known to this client.
type Unrecognized struct {
	Envelope
}

func (StatusUpdate) message()  {}
func (WarRoomUpdate) message() {}
func (TimelineEntry) message() {}
func (SystemReset) message()   {}
func (Pong) message()          {}
func (Unrecognized) message()  {}

func decodeStatusUpdate(env Envelope, data fields) StatusUpdate {
	return StatusUpdate{
		Envelope: env,
		Name:     data.str("name"),
		Status:   types.AgentStatus(data.str("status")),
		RoomID:   data.strPtr("war_room_id"),
	}
}

// roomRecord converts a wire war room to the mirror record. Missing
// participants become an empty list.
func roomRecord(data fields) types.RoomRecord {
	room := types.RoomRecord{
		ID:               data.str("id"),
		ParticipantNames: data.strs("participants"),
		Status:           types.RoomStatus(data.str("status")),
		RelatedIncident:  data.strPtr("incident_id"),
		CreatedAt:        ParseTime(data.str("created_at")),
	}
	if t := ParseTime(data.str("closed_at")); !t.IsZero() {
		room.ClosedAt = &t
	}
	return room
}

func decodeTimelineEvent(env Envelope, data fields) TimelineEntry {
	ts := ParseTime(data.str("timestamp"))
	if ts.IsZero() {
		ts = env.Timestamp
	}
	event := types.TimelineEvent{
		Agent:     data.str("agent"),
		Domain:    data.str("domain"),
		Role:      data.str("role"),
		Action:    data.str("action"),
		Message:   data.str("message"),
		Timestamp: ts,
		Data:      data.object("data"),
	}
	if sev, ok := data.optStr("severity"); ok {
		s := types.Severity(sev)
		event.Severity = &s
	}
	return TimelineEntry{Envelope: env, Event: event}
}

// DecodeState decodes a GET /state document using the same lenient
// member handling as inbound frames. Only the document shape is checked.
func DecodeState(raw []byte) (*types.SystemState, error) {
	var wire struct {
		Agents   []json.RawMessage `json:"agents"`
		WarRooms []json.RawMessage `json:"war_rooms"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPayload,
			Type: "state",
			Msg:  "failed to decode state document",
			Err:  err,
		}
	}

	state := &types.SystemState{
		Agents:   make([]types.AgentRecord, 0, len(wire.Agents)),
		WarRooms: make([]types.RoomRecord, 0, len(wire.WarRooms)),
	}
	for _, raw := range wire.Agents {
		a := objectFields(raw)
		state.Agents = append(state.Agents, types.AgentRecord{
			Name:         a.str("name"),
			Status:       types.AgentStatus(a.str("status")),
			Domain:       a.str("domain"),
			ActiveRoomID: a.strPtr("war_room_id"),
		})
	}
	for _, raw := range wire.WarRooms {
		state.WarRooms = append(state.WarRooms, roomRecord(objectFields(raw)))
	}
	return state, nil
}
