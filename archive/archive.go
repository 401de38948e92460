// Package archive persists reconciled changes to a Lode dataset.
//
// Records are JSONL, partitioned Hive-style by day and record kind:
//
//	<dataset>/day=2026-10-14/kind=timeline_appended/...
//
// The archive is write-mostly. Read helpers exist for replay tooling and
// tests; they scan snapshots and are not meant for large datasets.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/types"
)

// DefaultDataset is the dataset ID used when Config.Dataset is empty.
const DefaultDataset = "warroom"

// Partition keys, in layout order.
const (
	KeyDay  = "day"
	KeyKind = "kind"
)

// Config configures an Archive.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// SessionID is stamped on every record.
	SessionID string
}

// Archive writes change records to a Lode dataset.
// Safe for concurrent use; writes are serialized.
type Archive struct {
	dataset lode.Dataset
	config  Config
	metrics *metrics.Collector

	mu      sync.Mutex
	written int64
}

// NewFS creates an archive on the local filesystem rooted at root.
func NewFS(cfg Config, root string, m *metrics.Collector) (*Archive, error) {
	return New(cfg, lode.NewFSFactory(root), m)
}

// New creates an archive over a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func New(cfg Config, factory lode.StoreFactory, m *metrics.Collector) (*Archive, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout(KeyDay, KeyKind),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return &Archive{dataset: ds, config: cfg, metrics: m}, nil
}

// Dataset returns the underlying dataset.
func (a *Archive) Dataset() lode.Dataset { return a.dataset }

// Written returns the number of records written so far.
func (a *Archive) Written() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

// WriteChanges writes one record per change. Room-updated changes are
// skipped; the archive keeps lifecycle edges only. An empty batch is a
// no-op.
//
// Each call produces one snapshot per partition touched, so callers should
// batch changes from a single step together.
func (a *Archive) WriteChanges(ctx context.Context, changes []reconcile.Change) error {
	byPartition := make(map[string][]any)
	var order []string
	for _, ch := range changes {
		rec, ok := a.toRecord(ch)
		if !ok {
			continue
		}
		key := rec[KeyDay].(string) + "/" + rec[KeyKind].(string)
		if _, seen := byPartition[key]; !seen {
			order = append(order, key)
		}
		byPartition[key] = append(byPartition[key], rec)
	}
	if len(order) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, key := range order {
		records := byPartition[key]
		if _, err := a.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
			a.metrics.IncArchiveWrite(false)
			return WrapWriteError(err, a.config.Dataset+"/"+key)
		}
		a.metrics.IncArchiveWrite(true)
		a.written += int64(len(records))
	}
	return nil
}

// WriteEvents archives timeline events directly, stamping each with at.
func (a *Archive) WriteEvents(ctx context.Context, events []types.TimelineEvent, at time.Time) error {
	changes := make([]reconcile.Change, 0, len(events))
	for i := range events {
		changes = append(changes, reconcile.Change{
			Kind:  reconcile.ChangeTimelineAppended,
			At:    at,
			Event: &events[i],
		})
	}
	return a.WriteChanges(ctx, changes)
}

func (a *Archive) toRecord(ch reconcile.Change) (map[string]any, bool) {
	rec := map[string]any{
		KeyDay:        ch.At.UTC().Format("2006-01-02"),
		KeyKind:       string(ch.Kind),
		"session_id":  a.config.SessionID,
		"recorded_at": codec.FormatTime(ch.At),
	}

	switch ch.Kind {
	case reconcile.ChangeAgentStatus:
		if ch.Agent == nil {
			return nil, false
		}
		rec["agent"] = ch.Agent.Name
		rec["status"] = string(ch.Agent.Status)
		rec["previous_status"] = string(ch.PreviousStatus)
		if ch.Agent.ActiveRoomID != nil {
			rec["war_room_id"] = *ch.Agent.ActiveRoomID
		}
	case reconcile.ChangeRoomOpened, reconcile.ChangeRoomClosed:
		if ch.Room == nil {
			return nil, false
		}
		rec["war_room_id"] = ch.Room.ID
		rec["participants"] = append([]string{}, ch.Room.ParticipantNames...)
		rec["status"] = string(ch.Room.Status)
		if ch.Room.RelatedIncident != nil {
			rec["incident_id"] = *ch.Room.RelatedIncident
		}
	case reconcile.ChangeTimelineAppended:
		if ch.Event == nil {
			return nil, false
		}
		ev := ch.Event
		rec["agent"] = ev.Agent
		rec["domain"] = ev.Domain
		rec["role"] = ev.Role
		rec["action"] = ev.Action
		rec["message"] = ev.Message
		if !ev.Timestamp.IsZero() {
			rec["timestamp"] = codec.FormatTime(ev.Timestamp)
		}
		if ev.Severity != nil {
			rec["severity"] = string(*ev.Severity)
		}
		if len(ev.Data) > 0 {
			rec["data"] = ev.Data
		}
	case reconcile.ChangeReset:
	default:
		return nil, false
	}
	return rec, true
}

// ErrNoRecords is returned by Latest when nothing matches.
var ErrNoRecords = errors.New("no archive records found")

// Records reads every record of the given kind, oldest snapshot first.
// An empty kind matches all records.
func Records(ctx context.Context, ds lode.Dataset, kind reconcile.ChangeKind) ([]map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	var out []map[string]any
	for _, snap := range snapshots {
		if kind != "" && !snapshotHasPartition(snap, KeyKind, string(kind)) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}
		for _, item := range data {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if kind != "" && rec[KeyKind] != string(kind) {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Latest returns the most recently written record of kind.
func Latest(ctx context.Context, ds lode.Dataset, kind reconcile.ChangeKind) (map[string]any, error) {
	records, err := Records(ctx, ds, kind)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records[len(records)-1], nil
}
