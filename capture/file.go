package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/pithecene-io/warroom/iox"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Writer appends records to a capture file. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	zw     *zstd.Encoder
	count  int64
	closed bool
}

// Create creates (or truncates) a capture file at path. A .zst suffix
// enables zstd compression.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", path, err)
	}

	w := &Writer{file: f}
	var sink io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("capture: zstd writer: %w", err)
		}
		w.zw = zw
		sink = zw
	}
	w.buf = bufio.NewWriter(sink)
	return w, nil
}

// Record appends one frame. It satisfies client.Recorder.
func (w *Writer) Record(receivedAt time.Time, frame []byte) error {
	data, err := EncodeRecord(Record{ReceivedAt: receivedAt.UTC(), Frame: frame})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("capture: writer closed")
	}
	if _, err := w.buf.Write(data); err != nil {
		return fmt.Errorf("capture: write: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush pushes buffered records to the file. With compression, records
// become readable only after Close.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.buf.Flush()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	errs := []error{w.buf.Flush()}
	if w.zw != nil {
		errs = append(errs, w.zw.Close())
	}
	errs = append(errs, w.file.Close())
	return errors.Join(errs...)
}

// Reader reads records from a capture file.
type Reader struct {
	file *os.File
	zr   *zstd.Decoder
	dec  *Decoder
}

// Open opens a capture file. Compression is detected from content, not
// the file name.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	r := &Reader{file: f}

	head, err := br.Peek(len(zstdMagic))
	if err == nil && bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("capture: zstd reader: %w", err)
		}
		r.zr = zr
		r.dec = NewDecoder(zr)
		return r, nil
	}

	r.dec = NewDecoder(br)
	return r, nil
}

// Next returns the next record, io.EOF at the end.
func (r *Reader) Next() (Record, error) {
	return r.dec.Next()
}

// Close closes the file.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}

// ReadAll reads every record in the file at path. A truncated final
// record is dropped and reported through truncated.
func ReadAll(path string) (records []Record, truncated bool, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, false, err
	}
	defer iox.DiscardClose(r)

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, false, nil
		}
		if IsTruncated(err) {
			return records, true, nil
		}
		if err != nil {
			return records, false, err
		}
		records = append(records, rec)
	}
}
