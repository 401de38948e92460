package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"eacces", errors.New("open /data: permission denied"), ErrPermissionDenied},
		{"s3 forbidden", errors.New("api error AccessDenied: Forbidden"), ErrPermissionDenied},
		{"enoent", errors.New("open /x: no such file or directory"), ErrNotFound},
		{"no such key", errors.New("NoSuchKey: key missing"), ErrNotFound},
		{"enospc", errors.New("write: no space left on device"), ErrDiskFull},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"slowdown", errors.New("SlowDown: reduce your request rate"), ErrThrottled},
		{"creds", errors.New("NoCredentialProviders: no valid providers"), ErrAuth},
		{"refused", errors.New("dial tcp 127.0.0.1:9000: connect: connection refused"), ErrNetwork},
		{"other", errors.New("something odd"), ErrUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%q) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrap_Nil(t *testing.T) {
	if WrapWriteError(nil, "p") != nil || WrapReadError(nil, "p") != nil || WrapInitError(nil, "d") != nil {
		t.Error("wrapping nil returned non-nil")
	}
}

func TestStorageError_Message(t *testing.T) {
	cause := errors.New("no such file or directory")
	err := WrapReadError(cause, "snapshot/abc")
	want := "archive read snapshot/abc: not found: no such file or directory"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost from chain")
	}

	noPath := &StorageError{Kind: ErrAuth, Op: "init", Err: cause}
	if got := noPath.Error(); got != fmt.Sprintf("archive init: %v: %v", ErrAuth, cause) {
		t.Errorf("Error() without path = %q", got)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/a/b/", "bucket", "a/b"},
		{"s3://bucket/a", "bucket", "a"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.in, b, p, tt.bucket, tt.prefix)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("empty bucket accepted")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if _, err := NewS3(t.Context(), Config{}, S3Config{}, nil); err == nil {
		t.Error("NewS3 accepted empty bucket")
	}
}

func TestHasSegment(t *testing.T) {
	path := "warroom/day=2026-10-14/kind=room_opened/part-0.jsonl"
	if !hasSegment(path, KeyKind, "room_opened") {
		t.Error("exact segment not matched")
	}
	if hasSegment(path, KeyKind, "room") {
		t.Error("prefix matched as segment")
	}
}
