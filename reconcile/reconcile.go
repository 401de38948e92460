package reconcile

import (
	"slices"
	"time"

	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/types"
)

// ChangeKind classifies one observable effect of a reconciliation step.
type ChangeKind string

// Change kinds.
const (
	ChangeAgentStatus      ChangeKind = "agent_status"
	ChangeRoomOpened       ChangeKind = "room_opened"
	ChangeRoomUpdated      ChangeKind = "room_updated"
	ChangeRoomClosed       ChangeKind = "room_closed"
	ChangeTimelineAppended ChangeKind = "timeline_appended"
	ChangeReset            ChangeKind = "system_reset"
)

// Change describes one effect of a step. Only the fields relevant to Kind
// are set.
type Change struct {
	Kind ChangeKind
	At   time.Time
	// Agent is the agent record after the step.
	Agent *types.AgentRecord
	// PreviousStatus is the agent status before the step.
	PreviousStatus types.AgentStatus
	Room           *types.RoomRecord
	Event          *types.TimelineEvent
}

// Apply returns the mirror that results from applying msg to m at now.
// Unknown agents, unknown rooms and unrecognized kinds leave m unchanged;
// none of them is an error.
func Apply(m *Mirror, msg codec.Message, now time.Time) *Mirror {
	next, _ := Step(m, msg, now)
	return next
}

// Step is Apply that also reports the changes made. When nothing changed
// it returns m itself and no changes.
func Step(m *Mirror, msg codec.Message, now time.Time) (*Mirror, []Change) {
	switch msg := msg.(type) {
	case codec.StatusUpdate:
		return applyStatus(m, msg, now)
	case codec.WarRoomUpdate:
		return applyRoom(m, msg, now)
	case codec.TimelineEntry:
		return appendTimeline(m, msg.Event, now)
	case codec.SystemReset:
		return reset(m, now)
	case codec.Pong:
		// Latency belongs to the keepalive probe; the mirror is untouched.
		return m, nil
	case codec.Unrecognized:
		return m, nil
	default:
		return m, nil
	}
}

func applyStatus(m *Mirror, msg codec.StatusUpdate, now time.Time) (*Mirror, []Change) {
	prev, ok := m.agents[msg.Name]
	if !ok {
		return m, nil
	}

	updated := prev
	updated.Status = msg.Status
	updated.ActiveRoomID = nil
	if msg.RoomID != nil {
		id := *msg.RoomID
		updated.ActiveRoomID = &id
	}
	changedAt := now
	updated.LastChangedAt = &changedAt

	next := m.shallow()
	next.agents = m.cloneAgents()
	next.agents[msg.Name] = updated

	return next, []Change{{
		Kind:           ChangeAgentStatus,
		At:             now,
		Agent:          &updated,
		PreviousStatus: prev.Status,
	}}
}

func applyRoom(m *Mirror, msg codec.WarRoomUpdate, now time.Time) (*Mirror, []Change) {
	room := msg.Room
	if room.ID == "" {
		return m, nil
	}
	if room.ParticipantNames == nil {
		room.ParticipantNames = []string{}
	} else {
		room.ParticipantNames = slices.Clone(room.ParticipantNames)
	}

	_, existed := m.rooms[room.ID]
	upserted := m.cloneRooms()
	upserted[room.ID] = room

	next := m.shallow()
	next.rooms = make(map[string]types.RoomRecord, len(upserted))

	var changes []Change
	for id, r := range upserted {
		if r.Status == types.RoomActive {
			next.rooms[id] = r
			continue
		}
		// Pruned: report it only if it was visible before this step.
		if _, visible := m.rooms[id]; visible {
			closed := r
			changes = append(changes, Change{Kind: ChangeRoomClosed, At: now, Room: &closed})
		}
	}

	if room.Status == types.RoomActive {
		kind := ChangeRoomOpened
		if existed {
			kind = ChangeRoomUpdated
		}
		changes = append(changes, Change{Kind: kind, At: now, Room: &room})
	}

	return next, changes
}

func appendTimeline(m *Mirror, event types.TimelineEvent, now time.Time) (*Mirror, []Change) {
	next := m.shallow()
	next.timeline = m.timeline.Clone()
	next.timeline.Push(event)

	return next, []Change{{Kind: ChangeTimelineAppended, At: now, Event: &event}}
}

func reset(m *Mirror, now time.Time) (*Mirror, []Change) {
	next := m.shallow()

	next.timeline = m.timeline.Clone()
	next.timeline.Clear()

	next.agents = make(map[string]types.AgentRecord, len(m.agents))
	for name, a := range m.agents {
		changedAt := now
		a.Status = types.AgentStable
		a.ActiveRoomID = nil
		a.LastChangedAt = &changedAt
		next.agents[name] = a
	}

	next.rooms = make(map[string]types.RoomRecord)

	return next, []Change{{Kind: ChangeReset, At: now}}
}
