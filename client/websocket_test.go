package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

// TestClient_WebSocketEndToEnd runs the client against a real websocket
// server that pushes state and answers pings.
func TestClient_WebSocketEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		ctx := r.Context()
		_ = conn.Write(ctx, websocket.MessageText,
			frame("status_update", `{"name":"Phill","status":"active"}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`garbage`))
		_ = conn.Write(ctx, websocket.MessageText, timelineFrame(7))

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			msg, err := codec.Decode(data)
			if err != nil {
				continue
			}
			if msg.Meta().Type == codec.KindPing {
				_ = conn.Write(ctx, websocket.MessageText, frame("pong", ""))
			}
		}
	}))
	defer srv.Close()

	c, err := New(Options{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		PingInterval: 20 * time.Millisecond,
		Roster:       []types.AgentRecord{{Name: "Phill"}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Dispose()

	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s := waitFor(t, c, "state and latency", func(s *Snapshot) bool {
		phill, _ := s.Mirror.Agent("Phill")
		return phill.Status == types.AgentActive && s.Mirror.TimelineLen() == 1 && s.Latency.Known
	})
	if s.Status != transport.Open {
		t.Errorf("Status = %s, want open", s.Status)
	}
	if ev := s.Mirror.Timeline()[0]; ev.Message != "event-7" {
		t.Errorf("timeline = %+v", ev)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	disposed := make(chan struct{})
	go func() {
		c.Dispose()
		close(disposed)
	}()
	select {
	case <-disposed:
	case <-ctx.Done():
		t.Fatal("Dispose did not return")
	}
	if got := c.Snapshot().Status; got != transport.Idle {
		t.Errorf("Status after Dispose = %s, want idle", got)
	}
}
