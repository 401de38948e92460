// Package codec decodes inbound duplex-channel frames into typed messages.
//
// Wire format, one JSON object per frame:
//
//	{"type": "<kind>", "timestamp": "<ISO-8601>", "data": {...}}
//
// Decoding only checks that the frame parses as a JSON object. Members of
// the wrong type read as absent, a non-string type decodes to Unrecognized,
// and unknown kinds are ignored downstream rather than rejected here.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the envelope type discriminant.
type Kind string

// Recognized kinds.
const (
	KindStatusUpdate  Kind = "status_update"
	KindWarRoomUpdate Kind = "war_room_update"
	KindTimelineEvent Kind = "timeline_event"
	KindSystemReset   Kind = "system_reset"
	KindPong          Kind = "pong"
	// KindPing is outbound only.
	KindPing Kind = "ping"
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorSyntax indicates the frame is not a JSON object.
	FrameErrorSyntax FrameErrorKind = iota
	// FrameErrorPayload indicates a state document whose agent or room
	// lists are not arrays. Inbound frames never carry it.
	FrameErrorPayload
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorSyntax:
		return "syntax"
	case FrameErrorPayload:
		return "payload"
	default:
		return fmt.Sprintf("FrameErrorKind(%d)", int(k))
	}
}

// FrameError is returned for frames that must be discarded.
type FrameError struct {
	Kind FrameErrorKind
	// Type is the envelope type, when the outer object parsed.
	Type string
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a *FrameError.
func IsMalformed(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr)
}

// Envelope is the decoded outer frame shared by every message.
type Envelope struct {
	Type Kind
	// Timestamp is the parsed envelope timestamp; zero if absent or
	// unparseable.
	Timestamp time.Time
	// RawTimestamp is the timestamp string exactly as received.
	RawTimestamp string
	// Payload is the undecoded data member.
	Payload json.RawMessage
}

// Meta returns the envelope itself. Every Message embeds an Envelope.
func (e Envelope) Meta() Envelope { return e }

// Decode parses one raw frame. It returns a *FrameError for frames that
// must be dropped; any other value is a Message whose concrete type is one
// of the variants in message.go.
func Decode(raw []byte) (Message, error) {
	var wire fields
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorSyntax,
			Msg:  "failed to parse frame",
			Err:  err,
		}
	}
	if wire == nil {
		return nil, &FrameError{Kind: FrameErrorSyntax, Msg: "frame is not a JSON object"}
	}

	ts := wire.str("timestamp")
	env := Envelope{
		Type:         Kind(wire.str("type")),
		Timestamp:    ParseTime(ts),
		RawTimestamp: ts,
		Payload:      wire["data"],
	}
	data := objectFields(env.Payload)

	switch env.Type {
	case KindStatusUpdate:
		return decodeStatusUpdate(env, data), nil
	case KindWarRoomUpdate:
		return WarRoomUpdate{Envelope: env, Room: roomRecord(data)}, nil
	case KindTimelineEvent:
		return decodeTimelineEvent(env, data), nil
	case KindSystemReset:
		return SystemReset{Envelope: env}, nil
	case KindPong:
		return Pong{Envelope: env}, nil
	default:
		return Unrecognized{Envelope: env}, nil
	}
}

type wirePing struct {
	Type      Kind   `json:"type"`
	Timestamp string `json:"timestamp"`
}

// EncodePing returns the outbound keepalive frame for sentAt.
func EncodePing(sentAt time.Time) ([]byte, error) {
	return json.Marshal(wirePing{Type: KindPing, Timestamp: FormatTime(sentAt)})
}

// Timestamp layouts accepted on the wire. Backends often emit ISO-8601
// without a zone; those are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses an ISO-8601 timestamp leniently. Returns the zero time
// for empty or unparseable input.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatTime formats t as RFC 3339 in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
