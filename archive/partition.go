package archive

import (
	"strings"

	"github.com/justapithecus/lode/lode"
)

// snapshotHasPartition reports whether any file in snap lives under the
// Hive segment key=value.
func snapshotHasPartition(snap *lode.DatasetSnapshot, key, value string) bool {
	for _, f := range snap.Manifest.Files {
		if hasSegment(f.Path, key, value) {
			return true
		}
	}
	return false
}

// hasSegment matches whole path segments so that kind=room_opened does not
// match kind=room_opened_x.
func hasSegment(path, key, value string) bool {
	want := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == want {
			return true
		}
	}
	return false
}
