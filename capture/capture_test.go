package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecoder_ReadsEncodedRecords(t *testing.T) {
	var buf bytes.Buffer
	for i, frame := range []string{`{"type":"pong"}`, `not json`} {
		data, err := EncodeRecord(Record{ReceivedAt: t0.Add(time.Duration(i) * time.Second), Frame: []byte(frame)})
		if err != nil {
			t.Fatalf("EncodeRecord() error = %v", err)
		}
		buf.Write(data)
	}

	dec := NewDecoder(&buf)
	first, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(first.Frame) != `{"type":"pong"}` || !first.ReceivedAt.Equal(t0) {
		t.Errorf("first = %+v", first)
	}
	second, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(second.Frame) != "not json" {
		t.Errorf("second frame = %q", second.Frame)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestDecoder_Errors(t *testing.T) {
	valid, err := EncodeRecord(Record{ReceivedAt: t0, Frame: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}

	oversize := make([]byte, LengthPrefixSize)
	binary.BigEndian.PutUint32(oversize, MaxRecordSize+1)

	garbage, _ := msgpack.Marshal("just a string")
	garbageFrame := make([]byte, LengthPrefixSize, LengthPrefixSize+len(garbage))
	binary.BigEndian.PutUint32(garbageFrame, uint32(len(garbage)))
	garbageFrame = append(garbageFrame, garbage...)

	tests := []struct {
		name string
		data []byte
		kind FrameErrorKind
	}{
		{"partial prefix", valid[:2], FrameErrorPartial},
		{"partial payload", valid[:len(valid)-1], FrameErrorPartial},
		{"too large", oversize, FrameErrorTooLarge},
		{"not a record", garbageFrame, FrameErrorDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(bytes.NewReader(tt.data)).Next()
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("Next() error = %v, want *FrameError", err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %d, want %d", fe.Kind, tt.kind)
			}
			if IsTruncated(err) != (tt.kind == FrameErrorPartial) {
				t.Errorf("IsTruncated() = %v", IsTruncated(err))
			}
		})
	}
}

func TestWriterReader_RoundTrip(t *testing.T) {
	for _, name := range []string{"session.wrc", "session.wrc.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			w, err := Create(path)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			for i := range 50 {
				if err := w.Record(t0.Add(time.Duration(i)*time.Millisecond), []byte(`{"type":"timeline_event"}`)); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}
			if w.Count() != 50 {
				t.Errorf("Count() = %d, want 50", w.Count())
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if err := w.Record(t0, []byte("late")); err == nil {
				t.Error("Record() after Close succeeded")
			}

			records, truncated, err := ReadAll(path)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if truncated {
				t.Error("truncated = true for clean file")
			}
			if len(records) != 50 {
				t.Fatalf("len(records) = %d, want 50", len(records))
			}
			if !records[49].ReceivedAt.Equal(t0.Add(49 * time.Millisecond)) {
				t.Errorf("records[49].ReceivedAt = %v", records[49].ReceivedAt)
			}
		})
	}
}

func TestWriter_CompressedIsSmaller(t *testing.T) {
	dir := t.TempDir()
	frame := bytes.Repeat([]byte(`{"type":"status_update","data":{"name":"Phill","status":"stable"}}`), 4)

	sizes := map[string]int64{}
	for _, name := range []string{"plain.wrc", "packed.wrc.zst"} {
		path := filepath.Join(dir, name)
		w, err := Create(path)
		if err != nil {
			t.Fatal(err)
		}
		for range 200 {
			_ = w.Record(t0, frame)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		sizes[name] = info.Size()
	}
	if sizes["packed.wrc.zst"] >= sizes["plain.wrc"] {
		t.Errorf("compressed %d >= plain %d", sizes["packed.wrc.zst"], sizes["plain.wrc"])
	}
}

func TestReadAll_TruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.wrc")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = w.Record(t0, []byte("one"))
	_ = w.Record(t0, []byte("two"))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-2], 0o600); err != nil {
		t.Fatal(err)
	}

	records, truncated, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !truncated || len(records) != 1 || string(records[0].Frame) != "one" {
		t.Errorf("records=%d truncated=%v", len(records), truncated)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Open() of missing file succeeded")
	}
}
