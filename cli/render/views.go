package render

import (
	"sort"

	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/types"
)

// AgentRow is one agent in table output.
type AgentRow struct {
	Name        string `json:"name" yaml:"name"`
	Status      string `json:"status" yaml:"status"`
	Domain      string `json:"domain" yaml:"domain"`
	Room        string `json:"war_room_id,omitempty" yaml:"war_room_id,omitempty"`
	LastChanged string `json:"last_changed_at,omitempty" yaml:"last_changed_at,omitempty"`
}

// RoomRow is one active room in table output.
type RoomRow struct {
	ID           string   `json:"id" yaml:"id"`
	Status       string   `json:"status" yaml:"status"`
	Participants []string `json:"participants" yaml:"participants"`
	Incident     string   `json:"incident_id,omitempty" yaml:"incident_id,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// TimelineRow is one timeline event in table output.
type TimelineRow struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Agent     string `json:"agent" yaml:"agent"`
	Action    string `json:"action" yaml:"action"`
	Severity  string `json:"severity,omitempty" yaml:"severity,omitempty"`
	Message   string `json:"message" yaml:"message"`
}

// StateView is the mirror rendered for output.
type StateView struct {
	Agents        []AgentRow    `json:"agents" yaml:"agents"`
	Rooms         []RoomRow     `json:"war_rooms" yaml:"war_rooms"`
	Timeline      []TimelineRow `json:"timeline,omitempty" yaml:"timeline,omitempty"`
	TimelineTotal uint64        `json:"timeline_total,omitempty" yaml:"timeline_total,omitempty"`
}

// NewStateView builds a view of m. Timeline rows are newest first.
func NewStateView(m *reconcile.Mirror) StateView {
	v := StateView{
		Agents:        make([]AgentRow, 0),
		Rooms:         make([]RoomRow, 0),
		TimelineTotal: m.TimelineTotal(),
	}
	for _, a := range m.Agents() {
		v.Agents = append(v.Agents, NewAgentRow(a))
	}
	for _, r := range m.Rooms() {
		v.Rooms = append(v.Rooms, NewRoomRow(r))
	}
	events := m.Timeline()
	for i := len(events) - 1; i >= 0; i-- {
		v.Timeline = append(v.Timeline, NewTimelineRow(events[i]))
	}
	return v
}

// NewSeedView renders a /state document without building a mirror, so
// rooms the backend reports as closed are still listed.
func NewSeedView(s *types.SystemState) StateView {
	v := StateView{Agents: make([]AgentRow, 0), Rooms: make([]RoomRow, 0)}
	for _, a := range s.Agents {
		v.Agents = append(v.Agents, NewAgentRow(a))
	}
	for _, r := range s.WarRooms {
		v.Rooms = append(v.Rooms, NewRoomRow(r))
	}
	return v
}

// TableSections implements Sectioned.
func (v StateView) TableSections() []Section {
	sections := []Section{
		{Title: "Agents", Rows: v.Agents},
		{Title: "War rooms", Rows: v.Rooms},
	}
	if v.Timeline != nil {
		sections = append(sections, Section{Title: "Timeline", Rows: v.Timeline})
	}
	return sections
}

// NewAgentRow flattens an agent record.
func NewAgentRow(a types.AgentRecord) AgentRow {
	row := AgentRow{Name: a.Name, Status: string(a.Status), Domain: a.Domain}
	if a.InRoom() {
		row.Room = *a.ActiveRoomID
	}
	if a.LastChangedAt != nil {
		row.LastChanged = codec.FormatTime(*a.LastChangedAt)
	}
	return row
}

// NewRoomRow flattens a room record.
func NewRoomRow(r types.RoomRecord) RoomRow {
	row := RoomRow{ID: r.ID, Status: string(r.Status), Participants: r.ParticipantNames}
	if row.Participants == nil {
		row.Participants = []string{}
	}
	if r.RelatedIncident != nil {
		row.Incident = *r.RelatedIncident
	}
	if !r.CreatedAt.IsZero() {
		row.CreatedAt = codec.FormatTime(r.CreatedAt)
	}
	return row
}

// NewTimelineRow flattens a timeline event.
func NewTimelineRow(e types.TimelineEvent) TimelineRow {
	row := TimelineRow{Agent: e.Agent, Action: e.Action, Message: e.Message}
	if !e.Timestamp.IsZero() {
		row.Timestamp = codec.FormatTime(e.Timestamp)
	}
	if e.Severity != nil {
		row.Severity = string(*e.Severity)
	}
	return row
}

// WorkflowRow is a workflow summary for list output.
type WorkflowRow struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Active  bool   `json:"active" yaml:"active"`
	Trigger string `json:"trigger" yaml:"trigger"`
	Agents  int    `json:"agents" yaml:"agents"`
	Outputs int    `json:"outputs" yaml:"outputs"`
	Updated string `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// NewWorkflowRows summarizes workflows. Only enabled agents and outputs
// are counted.
func NewWorkflowRows(workflows []types.Workflow) []WorkflowRow {
	rows := make([]WorkflowRow, 0, len(workflows))
	for _, w := range workflows {
		row := WorkflowRow{
			ID:      w.ID,
			Name:    w.Name,
			Active:  w.Active,
			Trigger: w.Trigger.Type,
			Updated: w.UpdatedAt,
		}
		for _, a := range w.Agents {
			if a.Enabled {
				row.Agents++
			}
		}
		for _, o := range w.Outputs {
			if o.Enabled {
				row.Outputs++
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// KindCount is one row of a per-kind tally.
type KindCount struct {
	Kind  string `json:"kind" yaml:"kind"`
	Count int64  `json:"count" yaml:"count"`
}

// ReplayView summarizes an offline replay of a capture file.
type ReplayView struct {
	Path         string      `json:"path" yaml:"path"`
	Frames       int64       `json:"frames" yaml:"frames"`
	Malformed    int64       `json:"malformed" yaml:"malformed"`
	Unrecognized int64       `json:"unrecognized" yaml:"unrecognized"`
	Truncated    bool        `json:"truncated" yaml:"truncated"`
	First        string      `json:"first_received_at,omitempty" yaml:"first_received_at,omitempty"`
	Last         string      `json:"last_received_at,omitempty" yaml:"last_received_at,omitempty"`
	ByKind       []KindCount `json:"by_kind" yaml:"by_kind"`
	State        StateView   `json:"state" yaml:"state"`
}

// NewKindCounts converts a tally into rows sorted by kind.
func NewKindCounts(counts map[string]int64) []KindCount {
	rows := make([]KindCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, KindCount{Kind: k, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Kind < rows[j].Kind })
	return rows
}

type replaySummary struct {
	Path         string `json:"path"`
	Frames       int64  `json:"frames"`
	Malformed    int64  `json:"malformed"`
	Unrecognized int64  `json:"unrecognized"`
	Truncated    bool   `json:"truncated"`
	First        string `json:"first_received_at"`
	Last         string `json:"last_received_at"`
}

// TableSections implements Sectioned.
func (v ReplayView) TableSections() []Section {
	summary := replaySummary{
		Path:         v.Path,
		Frames:       v.Frames,
		Malformed:    v.Malformed,
		Unrecognized: v.Unrecognized,
		Truncated:    v.Truncated,
		First:        v.First,
		Last:         v.Last,
	}
	sections := []Section{
		{Title: "Capture", Rows: summary},
		{Title: "Messages", Rows: v.ByKind},
	}
	return append(sections, v.State.TableSections()...)
}
