// Package reconcile folds decoded inbound messages into the local mirror of
// backend state.
//
// A *Mirror is immutable once returned: Apply builds the next mirror,
// sharing unchanged parts with the previous one. Readers may hold any
// mirror indefinitely while the owner keeps applying messages.
package reconcile

import (
	"sort"

	"github.com/pithecene-io/warroom/ring"
	"github.com/pithecene-io/warroom/types"
)

// TimelineCapacity is the maximum number of timeline events retained.
const TimelineCapacity = 50

// Mirror is the local canonical copy of backend agent, room and timeline
// state.
type Mirror struct {
	// order is the roster order fixed at creation.
	order    []string
	agents   map[string]types.AgentRecord
	rooms    map[string]types.RoomRecord
	timeline *ring.Ring[types.TimelineEvent]
}

// NewMirror creates a mirror whose agent roster is fixed to roster.
// Duplicate names keep the first record. Rooms and timeline start empty.
func NewMirror(roster []types.AgentRecord) *Mirror {
	m := &Mirror{
		agents:   make(map[string]types.AgentRecord, len(roster)),
		rooms:    make(map[string]types.RoomRecord),
		timeline: ring.New[types.TimelineEvent](TimelineCapacity),
	}
	for _, a := range roster {
		if _, dup := m.agents[a.Name]; dup || a.Name == "" {
			continue
		}
		if a.Status == "" {
			a.Status = types.AgentStable
		}
		m.order = append(m.order, a.Name)
		m.agents[a.Name] = a
	}
	return m
}

// Seed creates a new mirror from a full-state document. The roster comes
// from state; if state lists no agents the receiver's roster is kept.
// Non-active rooms are dropped. The timeline carries over unchanged.
func (m *Mirror) Seed(state *types.SystemState) *Mirror {
	roster := state.Agents
	if len(roster) == 0 {
		roster = m.Agents()
	}
	next := NewMirror(roster)
	for _, r := range state.WarRooms {
		if r.Status == types.RoomActive && r.ID != "" {
			next.rooms[r.ID] = r
		}
	}
	next.timeline = m.timeline
	return next
}

// Agent returns the record for name.
func (m *Mirror) Agent(name string) (types.AgentRecord, bool) {
	a, ok := m.agents[name]
	return a, ok
}

// Agents returns all agent records in roster order.
func (m *Mirror) Agents() []types.AgentRecord {
	out := make([]types.AgentRecord, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.agents[name])
	}
	return out
}

// Room returns the active room with the given id.
func (m *Mirror) Room(id string) (types.RoomRecord, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms returns the active rooms ordered by creation time, then id.
func (m *Mirror) Rooms() []types.RoomRecord {
	out := make([]types.RoomRecord, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Timeline returns the retained timeline events, oldest first.
func (m *Mirror) Timeline() []types.TimelineEvent {
	return m.timeline.Items()
}

// TimelineLen returns the number of retained timeline events.
func (m *Mirror) TimelineLen() int { return m.timeline.Len() }

// TimelineTotal returns the number of timeline events ever appended,
// including evicted ones.
func (m *Mirror) TimelineTotal() uint64 { return m.timeline.Pushed() }

// State returns the mirror as a full-state document.
func (m *Mirror) State() *types.SystemState {
	return &types.SystemState{Agents: m.Agents(), WarRooms: m.Rooms()}
}

// shallow returns a copy sharing all maps and the timeline.
func (m *Mirror) shallow() *Mirror {
	c := *m
	return &c
}

func (m *Mirror) cloneAgents() map[string]types.AgentRecord {
	out := make(map[string]types.AgentRecord, len(m.agents))
	for k, v := range m.agents {
		out[k] = v
	}
	return out
}

func (m *Mirror) cloneRooms() map[string]types.RoomRecord {
	out := make(map[string]types.RoomRecord, len(m.rooms))
	for k, v := range m.rooms {
		out[k] = v
	}
	return out
}
