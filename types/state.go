package types

// SystemState is the full-state document returned by GET /state.
// It seeds a mirror before incremental updates take over.
type SystemState struct {
	Agents   []AgentRecord `json:"agents" yaml:"agents"`
	WarRooms []RoomRecord  `json:"war_rooms" yaml:"war_rooms"`
}
