package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/warroom/types"
)

func TestDecode_StatusUpdate(t *testing.T) {
	raw := []byte(`{"type":"status_update","timestamp":"2026-03-01T12:00:00Z","data":{"name":"Phill","status":"incident","war_room_id":"wr-1"}}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	su, ok := msg.(StatusUpdate)
	if !ok {
		t.Fatalf("expected StatusUpdate, got %T", msg)
	}
	if su.Name != "Phill" {
		t.Errorf("Name = %q, want Phill", su.Name)
	}
	if su.Status != types.AgentIncident {
		t.Errorf("Status = %q, want incident", su.Status)
	}
	if su.RoomID == nil || *su.RoomID != "wr-1" {
		t.Errorf("RoomID = %v, want wr-1", su.RoomID)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !su.Meta().Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", su.Meta().Timestamp, want)
	}
}

func TestDecode_StatusUpdateWithoutRoom(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"status_update","timestamp":"2026-03-01T12:00:00Z","data":{"name":"Carl","status":"active"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	su := msg.(StatusUpdate)
	if su.RoomID != nil {
		t.Errorf("RoomID = %q, want nil", *su.RoomID)
	}
}

func TestDecode_WarRoomUpdate(t *testing.T) {
	raw := []byte(`{"type":"war_room_update","timestamp":"2026-03-01T12:00:00Z","data":{
		"id":"wr-7","participants":["Phill","Carl"],"status":"active",
		"incident_id":"inc-3","created_at":"2026-03-01T11:59:00.123456","closed_at":null}}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	room := msg.(WarRoomUpdate).Room

	if room.ID != "wr-7" {
		t.Errorf("ID = %q, want wr-7", room.ID)
	}
	if len(room.ParticipantNames) != 2 || room.ParticipantNames[0] != "Phill" || room.ParticipantNames[1] != "Carl" {
		t.Errorf("ParticipantNames = %v, want [Phill Carl]", room.ParticipantNames)
	}
	if room.Status != types.RoomActive {
		t.Errorf("Status = %q, want active", room.Status)
	}
	if room.RelatedIncident == nil || *room.RelatedIncident != "inc-3" {
		t.Errorf("RelatedIncident = %v, want inc-3", room.RelatedIncident)
	}
	if room.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed from zoneless timestamp")
	}
	if room.ClosedAt != nil {
		t.Errorf("ClosedAt = %v, want nil", room.ClosedAt)
	}
}

func TestDecode_WarRoomMissingParticipants(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"war_room_update","timestamp":"","data":{"id":"wr-1","status":"active"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	room := msg.(WarRoomUpdate).Room
	if room.ParticipantNames == nil || len(room.ParticipantNames) != 0 {
		t.Errorf("ParticipantNames = %#v, want empty non-nil", room.ParticipantNames)
	}
}

func TestDecode_TimelineEvent(t *testing.T) {
	raw := []byte(`{"type":"timeline_event","timestamp":"2026-03-01T12:00:05Z","data":{
		"agent":"Gary","domain":"resolution","role":"resolver","action":"deploy_fix",
		"message":"rolled back","timestamp":"2026-03-01T12:00:04Z","severity":"warning",
		"data":{"pr":"#12"}}}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ev := msg.(TimelineEntry).Event

	if ev.Agent != "Gary" || ev.Action != "deploy_fix" || ev.Message != "rolled back" {
		t.Errorf("unexpected event fields: %+v", ev)
	}
	if ev.Severity == nil || *ev.Severity != types.SeverityWarning {
		t.Errorf("Severity = %v, want warning", ev.Severity)
	}
	if ev.Data["pr"] != "#12" {
		t.Errorf("Data[pr] = %v, want #12", ev.Data["pr"])
	}
	if !ev.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 4, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want payload timestamp", ev.Timestamp)
	}
}

func TestDecode_TimelineEventFallsBackToEnvelopeTimestamp(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"timeline_event","timestamp":"2026-03-01T12:00:05Z","data":{"agent":"Gary"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ev := msg.(TimelineEntry).Event
	if !ev.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want envelope timestamp", ev.Timestamp)
	}
}

func TestDecode_KindsWithoutPayload(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`{"type":"system_reset","timestamp":"2026-03-01T12:00:00Z","data":{}}`, SystemReset{}},
		{`{"type":"pong","timestamp":"2026-03-01T12:00:00Z"}`, Pong{}},
		{`{"type":"agent_heartbeat","timestamp":"2026-03-01T12:00:00Z","data":{"x":1}}`, Unrecognized{}},
		{`{"timestamp":"2026-03-01T12:00:00Z"}`, Unrecognized{}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			switch tt.want.(type) {
			case SystemReset:
				if _, ok := msg.(SystemReset); !ok {
					t.Errorf("got %T, want SystemReset", msg)
				}
			case Pong:
				if _, ok := msg.(Pong); !ok {
					t.Errorf("got %T, want Pong", msg)
				}
			case Unrecognized:
				if _, ok := msg.(Unrecognized); !ok {
					t.Errorf("got %T, want Unrecognized", msg)
				}
			}
		})
	}
}

func TestDecode_UnrecognizedKeepsType(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"agent_heartbeat","timestamp":"x","data":{"x":1}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Meta().Type != "agent_heartbeat" {
		t.Errorf("Type = %q, want agent_heartbeat", msg.Meta().Type)
	}
	if !msg.Meta().Timestamp.IsZero() {
		t.Errorf("unparseable timestamp produced %v", msg.Meta().Timestamp)
	}
	if msg.Meta().RawTimestamp != "x" {
		t.Errorf("RawTimestamp = %q, want x", msg.Meta().RawTimestamp)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind FrameErrorKind
	}{
		{"truncated", `{"type":"timeline_event","data":{`, FrameErrorSyntax},
		{"not json", `hello`, FrameErrorSyntax},
		{"array", `[1,2,3]`, FrameErrorSyntax},
		{"string", `"status_update"`, FrameErrorSyntax},
		{"null", `null`, FrameErrorSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			if err == nil {
				t.Fatalf("expected error, got %T", msg)
			}
			if msg != nil {
				t.Errorf("expected nil message on error, got %T", msg)
			}
			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				t.Fatalf("expected *FrameError, got %T", err)
			}
			if frameErr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", frameErr.Kind, tt.kind)
			}
			if !IsMalformed(err) {
				t.Error("IsMalformed = false")
			}
		})
	}
}

func TestDecode_MistypedEnvelope(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"pong","timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := msg.(Pong); !ok {
		t.Fatalf("got %T, want Pong", msg)
	}
	if !msg.Meta().Timestamp.IsZero() || msg.Meta().RawTimestamp != "" {
		t.Errorf("numeric timestamp read as %v / %q", msg.Meta().Timestamp, msg.Meta().RawTimestamp)
	}

	msg, err = Decode([]byte(`{"type":7,"timestamp":"2026-03-01T12:00:00Z","data":{"name":"Phill"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := msg.(Unrecognized); !ok {
		t.Errorf("got %T, want Unrecognized", msg)
	}
}

func TestDecode_MistypedPayloadMembers(t *testing.T) {
	t.Run("timeline data not an object", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"timeline_event","data":{"agent":"Gary","message":"rolled back","data":"note","severity":3}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		ev := msg.(TimelineEntry).Event
		if ev.Agent != "Gary" || ev.Message != "rolled back" {
			t.Errorf("event = %+v", ev)
		}
		if ev.Data != nil {
			t.Errorf("Data = %v, want nil", ev.Data)
		}
		if ev.Severity != nil {
			t.Errorf("Severity = %v, want nil", *ev.Severity)
		}
	})

	t.Run("status room id not a string", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"status_update","data":{"name":"Phill","status":"incident","war_room_id":42}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		su := msg.(StatusUpdate)
		if su.Name != "Phill" || su.Status != types.AgentIncident {
			t.Errorf("StatusUpdate = %+v", su)
		}
		if su.RoomID != nil {
			t.Errorf("RoomID = %q, want nil", *su.RoomID)
		}
	})

	t.Run("status payload not an object", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"status_update","data":"Phill"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if su := msg.(StatusUpdate); su.Name != "" {
			t.Errorf("Name = %q, want empty", su.Name)
		}
	})

	t.Run("room optional members", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"war_room_update","data":{"id":"wr-1","status":"closed",
			"participants":["Phill",5,null,"Carl"],"incident_id":9,"closed_at":false,"created_at":{}}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		room := msg.(WarRoomUpdate).Room
		if room.ID != "wr-1" || room.Status != types.RoomClosed {
			t.Errorf("room = %+v", room)
		}
		if len(room.ParticipantNames) != 2 || room.ParticipantNames[1] != "Carl" {
			t.Errorf("ParticipantNames = %v, want [Phill Carl]", room.ParticipantNames)
		}
		if room.RelatedIncident != nil || room.ClosedAt != nil || !room.CreatedAt.IsZero() {
			t.Errorf("mistyped optional members kept: %+v", room)
		}
	})

	t.Run("participants not an array", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"war_room_update","data":{"id":"wr","participants":"Phill"}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if p := msg.(WarRoomUpdate).Room.ParticipantNames; p == nil || len(p) != 0 {
			t.Errorf("ParticipantNames = %#v, want empty non-nil", p)
		}
	})
}

func TestEncodePing(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 120_000_000, time.FixedZone("CET", 3600))

	raw, err := EncodePing(sentAt)
	if err != nil {
		t.Fatalf("EncodePing failed: %v", err)
	}

	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("ping is not JSON: %v", err)
	}
	if frame["type"] != "ping" {
		t.Errorf("type = %v, want ping", frame["type"])
	}
	if frame["timestamp"] != "2026-03-01T11:00:00.120Z" {
		t.Errorf("timestamp = %v, want 2026-03-01T11:00:00.120Z", frame["timestamp"])
	}
	if len(frame) != 2 {
		t.Errorf("ping has extra members: %v", frame)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 30, 15, 500_000_000, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T12:30:15.5Z", want},
		{"2026-03-01T12:30:15.500000", want},
		{"2026-03-01 12:30:15.5", want},
		{"2026-03-01T13:30:15.5+01:00", want},
		{"", time.Time{}},
		{"not a time", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseTime(tt.in); !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeState(t *testing.T) {
	raw := []byte(`{
		"agents":[
			{"name":"Phill","status":"stable","domain":"detection","war_room_id":null},
			{"name":"Carl","status":"active","domain":"investigation","war_room_id":"wr-1"}
		],
		"war_rooms":[{"id":"wr-1","participants":["Carl"],"status":"active","created_at":"2026-03-01T12:00:00Z"}]
	}`)

	state, err := DecodeState(raw)
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}
	if len(state.Agents) != 2 {
		t.Fatalf("len(Agents) = %d, want 2", len(state.Agents))
	}
	if state.Agents[1].ActiveRoomID == nil || *state.Agents[1].ActiveRoomID != "wr-1" {
		t.Errorf("Carl room = %v, want wr-1", state.Agents[1].ActiveRoomID)
	}
	if len(state.WarRooms) != 1 || state.WarRooms[0].ID != "wr-1" {
		t.Errorf("WarRooms = %+v", state.WarRooms)
	}
}

func TestDecodeState_Invalid(t *testing.T) {
	if _, err := DecodeState([]byte(`{"agents":"nope"}`)); err == nil {
		t.Error("expected error for invalid state")
	}
}
