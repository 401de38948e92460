// Package capture records raw inbound frames to a file and reads them back
// for offline replay.
//
// A capture is a stream of length-prefixed msgpack records: a 4-byte
// big-endian payload length followed by the msgpack encoding of a Record.
// Files ending in .zst are zstd-compressed as a whole stream.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// MaxRecordSize is the maximum encoded record size (16 MiB).
	MaxRecordSize = 16 * 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Record is one captured inbound frame.
type Record struct {
	ReceivedAt time.Time `msgpack:"received_at"`
	Frame      []byte    `msgpack:"frame"`
}

// FrameErrorKind classifies capture decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated record.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a length prefix above MaxRecordSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a capture decoding error.
type FrameError struct {
	Kind FrameErrorKind
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

// IsTruncated reports whether err is a partial-record error, which is what
// a capture cut off by a crash ends with.
func IsTruncated(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Kind == FrameErrorPartial
}

// EncodeRecord returns the length-prefixed encoding of rec.
func EncodeRecord(rec Record) ([]byte, error) {
	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if len(payload) > MaxRecordSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("record size %d exceeds maximum %d", len(payload), MaxRecordSize),
		}
	}
	out := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[LengthPrefixSize:], payload)
	return out, nil
}

// Decoder reads records from a stream.
type Decoder struct {
	reader io.Reader
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: r}
}

// Next reads one record.
//
// Errors:
//   - io.EOF: stream ended cleanly
//   - *FrameError with Kind=FrameErrorPartial: truncated record
//   - *FrameError with Kind=FrameErrorTooLarge: length prefix over limit
//   - *FrameError with Kind=FrameErrorDecode: payload is not a Record
func (d *Decoder) Next() (Record, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > MaxRecordSize {
		return Record{}, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("record size %d exceeds maximum %d", size, MaxRecordSize),
		}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return Record{}, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read record", Err: err}
	}

	var rec Record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return Record{}, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode record", Err: err}
	}
	return rec, nil
}
