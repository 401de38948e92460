package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"
	"nhooyr.io/websocket"

	"github.com/pithecene-io/warroom/adapter"
	"github.com/pithecene-io/warroom/archive"
	"github.com/pithecene-io/warroom/client"
	"github.com/pithecene-io/warroom/clock"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type recordingAdapter struct {
	mu   sync.Mutex
	got  []adapter.Notification
	fail error
}

func (a *recordingAdapter) Publish(_ context.Context, n *adapter.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.got = append(a.got, *n)
	return nil
}

func (a *recordingAdapter) Close() error { return nil }

func (a *recordingAdapter) notifications() []adapter.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]adapter.Notification(nil), a.got...)
}

type fakeSource struct {
	updates    chan client.Update
	terminated chan struct{}
	mu         sync.Mutex
	snapshot   *client.Snapshot
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		updates:    make(chan client.Update, 8),
		terminated: make(chan struct{}),
		snapshot:   &client.Snapshot{Status: transport.Open},
	}
}

func (s *fakeSource) Subscribe(int) (<-chan client.Update, func()) { return s.updates, func() {} }
func (s *fakeSource) Terminated() <-chan struct{}                  { return s.terminated }
func (s *fakeSource) Snapshot() *client.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *fakeSource) terminate(snap *client.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	close(s.terminated)
}

func strptr(s string) *string { return &s }

func newRelay(a adapter.Adapter, w ChangeWriter, m *metrics.Collector) *Relay {
	return New(Config{
		Session: types.SessionMeta{SessionID: "sess-1", Endpoint: "ws://localhost/ws"},
		Adapter: a,
		Archive: w,
		Metrics: m,
		Clock:   clock.Fake(testNow),
	})
}

func TestHandle_MapsChanges(t *testing.T) {
	rec := &recordingAdapter{}
	r := newRelay(rec, nil, nil)

	onCall := types.AgentRecord{Name: "Gary", Status: types.AgentIncident, ActiveRoomID: strptr("wr-1")}
	unchanged := types.AgentRecord{Name: "Carl", Status: types.AgentActive}
	room := types.RoomRecord{ID: "wr-1", ParticipantNames: []string{"Gary"}, Status: types.RoomActive, RelatedIncident: strptr("inc-1")}
	closed := types.RoomRecord{ID: "wr-0", Status: types.RoomClosed}
	event := types.TimelineEvent{Agent: "Gary", Message: "paged"}

	r.Handle(t.Context(), client.Update{Changes: []reconcile.Change{
		{Kind: reconcile.ChangeAgentStatus, At: testNow, Agent: &onCall, PreviousStatus: types.AgentStable},
		{Kind: reconcile.ChangeAgentStatus, At: testNow, Agent: &unchanged, PreviousStatus: types.AgentActive},
		{Kind: reconcile.ChangeRoomOpened, At: testNow, Room: &room},
		{Kind: reconcile.ChangeRoomUpdated, At: testNow, Room: &room},
		{Kind: reconcile.ChangeRoomClosed, At: testNow, Room: &closed},
		{Kind: reconcile.ChangeTimelineAppended, At: testNow, Event: &event},
		{Kind: reconcile.ChangeReset, At: testNow},
	}})

	got := rec.notifications()
	wantKinds := []adapter.EventType{
		adapter.EventAgentStatusChanged,
		adapter.EventRoomOpened,
		adapter.EventRoomClosed,
		adapter.EventSystemReset,
	}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d notifications, want %d: %+v", len(got), len(wantKinds), got)
	}
	for i, want := range wantKinds {
		if got[i].EventType != want {
			t.Errorf("notification[%d] = %q, want %q", i, got[i].EventType, want)
		}
		if got[i].SessionID != "sess-1" || got[i].ContractVersion != adapter.ContractVersion {
			t.Errorf("notification[%d] missing session context: %+v", i, got[i])
		}
		if got[i].Timestamp != "2026-10-14T12:00:00.000Z" {
			t.Errorf("notification[%d] timestamp = %q", i, got[i].Timestamp)
		}
	}

	status := got[0]
	if status.Agent != "Gary" || status.Status != "incident" || status.PreviousStatus != "stable" || status.RoomID != "wr-1" {
		t.Errorf("status notification = %+v", status)
	}
	opened := got[1]
	if opened.RoomID != "wr-1" || opened.IncidentID != "inc-1" || len(opened.Participants) != 1 {
		t.Errorf("room_opened notification = %+v", opened)
	}
	if got[2].RoomID != "wr-0" || got[2].Status != "closed" {
		t.Errorf("room_closed notification = %+v", got[2])
	}
}

func TestHandle_ArchivesChanges(t *testing.T) {
	m := metrics.NewCollector("sess-1", "")
	a, err := archive.New(archive.Config{SessionID: "sess-1"}, lode.NewMemoryFactory(), m)
	if err != nil {
		t.Fatalf("archive.New: %v", err)
	}
	r := newRelay(nil, a, m)

	event := types.TimelineEvent{Agent: "Phill", Message: "detected drift"}
	r.Handle(t.Context(), client.Update{Changes: []reconcile.Change{
		{Kind: reconcile.ChangeTimelineAppended, At: testNow, Event: &event},
	}})
	// No changes, no write.
	r.Handle(t.Context(), client.Update{})

	if got := a.Written(); got != 1 {
		t.Errorf("archive Written() = %d, want 1", got)
	}
	if got := m.Snapshot().ArchiveWriteSuccess; got != 1 {
		t.Errorf("ArchiveWriteSuccess = %d, want 1", got)
	}
}

func TestHandle_PublishFailureIsCounted(t *testing.T) {
	rec := &recordingAdapter{fail: errors.New("downstream unavailable")}
	m := metrics.NewCollector("sess-1", "")
	r := newRelay(rec, nil, m)

	r.Handle(t.Context(), client.Update{Changes: []reconcile.Change{{Kind: reconcile.ChangeReset, At: testNow}}})

	snap := m.Snapshot()
	if snap.NotificationsFailed != 1 || snap.NotificationsPublished != 0 {
		t.Errorf("notifications = %d ok / %d failed, want 0/1", snap.NotificationsPublished, snap.NotificationsFailed)
	}
}

func TestRun_ExhaustedOnce(t *testing.T) {
	rec := &recordingAdapter{}
	m := metrics.NewCollector("sess-1", "")
	r := newRelay(rec, nil, m)
	src := newFakeSource()

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context(), src) }()

	terminal := &client.Snapshot{
		Status:    transport.Errored,
		Reconnect: transport.ReconnectState{Attempt: 5, MaxAttempts: 5},
		Err:       &transport.ExhaustedError{Attempts: 5, Reason: "server restarting"},
	}
	// Both the terminated signal and the terminal update arrive; only one
	// notification is published.
	src.updates <- client.Update{Snapshot: terminal}
	src.terminate(terminal)
	close(src.updates)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after stream closed")
	}

	var exhausted []adapter.Notification
	for _, n := range rec.notifications() {
		if n.EventType == adapter.EventConnectivityExhausted {
			exhausted = append(exhausted, n)
		}
	}
	if len(exhausted) != 1 {
		t.Fatalf("got %d connectivity_exhausted notifications, want 1", len(exhausted))
	}
	if exhausted[0].Reason != "server restarting" || exhausted[0].Attempts != 5 {
		t.Errorf("exhausted notification = %+v", exhausted[0])
	}
	if got := m.Snapshot().NotificationsPublished; got != 1 {
		t.Errorf("NotificationsPublished = %d, want 1", got)
	}
}

func TestRun_TerminatedWithoutUpdate(t *testing.T) {
	rec := &recordingAdapter{}
	r := newRelay(rec, nil, nil)
	src := newFakeSource()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, src) }()

	src.terminate(&client.Snapshot{
		Status: transport.Errored,
		Err:    &transport.ExhaustedError{Attempts: 5},
	})

	deadline := time.Now().Add(5 * time.Second)
	for len(rec.notifications()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no notification after termination")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	n := rec.notifications()[0]
	if n.Reason != "exhausted 5 attempts" {
		t.Errorf("reason = %q, want %q", n.Reason, "exhausted 5 attempts")
	}
}

func TestRelay_WithClient(t *testing.T) {
	rec := &recordingAdapter{}
	c, err := client.New(client.Options{URL: "ws://127.0.0.1:1/ws"})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	r := newRelay(rec, nil, nil)

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context(), c) }()

	// Disposal closes the update stream, before or after Run subscribes.
	c.Dispose()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Dispose")
	}
}

func TestAttach_SeesFirstFrameAfterOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		_ = conn.Write(r.Context(), websocket.MessageText,
			[]byte(`{"type":"status_update","timestamp":"2026-10-14T12:00:00Z","data":{"name":"Phill","status":"incident"}}`))
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := client.New(client.Options{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Roster: []types.AgentRecord{{Name: "Phill", Domain: "detection"}},
	})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	m := metrics.NewCollector("sess-1", "")
	a, err := archive.New(archive.Config{SessionID: "sess-1"}, lode.NewMemoryFactory(), m)
	if err != nil {
		t.Fatalf("archive.New: %v", err)
	}
	rec := &recordingAdapter{}
	att := newRelay(rec, a, m).Attach(c)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- att.Run(t.Context()) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.Written() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first status change was not archived")
		}
		time.Sleep(time.Millisecond)
	}
	c.Dispose()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v", err)
	}

	got := rec.notifications()
	if len(got) == 0 || got[0].EventType != adapter.EventAgentStatusChanged || got[0].Agent != "Phill" {
		t.Errorf("notifications = %+v, want Phill status change first", got)
	}
}
