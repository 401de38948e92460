package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/warroom/capture"
	"github.com/pithecene-io/warroom/cli/config"
	"github.com/pithecene-io/warroom/cli/render"
	"github.com/pithecene-io/warroom/cli/tui"
	"github.com/pithecene-io/warroom/client"
	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/iox"
	"github.com/pithecene-io/warroom/log"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/relay"
	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

// WatchCommand returns the watch command: the live client.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Connect to the backend and mirror its state until interrupted",
		Flags: append(BackendFlags(),
			&cli.StringFlag{
				Name:  "capture",
				Usage: "Record raw inbound frames to this file (.zst compresses)",
			},
			&cli.BoolFlag{
				Name:  "no-seed",
				Usage: "Skip fetching the full state before connecting",
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "Reconnect attempts before giving up",
			},
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Stop after this long (default: until interrupted)",
			},
			&cli.StringFlag{
				Name:  "webhook",
				Usage: "POST notifications to this URL",
			},
			&cli.StringFlag{
				Name:  "redis",
				Usage: "PUBLISH notifications to this redis URL",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
		),
		Action: watchAction,
	}
}

// applyWatchFlags lets flags override the matching config values.
func applyWatchFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("capture") {
		cfg.Capture.Path = c.String("capture")
	}
	if c.IsSet("max-attempts") {
		n := c.Int("max-attempts")
		if n <= 0 {
			return errors.New("--max-attempts must be > 0")
		}
		cfg.Reconnect.MaxAttempts = &n
	}
	switch {
	case c.IsSet("webhook") && c.IsSet("redis"):
		return errors.New("--webhook and --redis are mutually exclusive")
	case c.IsSet("webhook"):
		cfg.Adapter.Type = config.AdapterWebhook
		cfg.Adapter.URL = c.String("webhook")
	case c.IsSet("redis"):
		cfg.Adapter.Type = config.AdapterRedis
		cfg.Adapter.URL = c.String("redis")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

func watchAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyWatchFlags(c, cfg); err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	conn, err := newConnection(cfg.Backend)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	defer iox.DiscardClose(conn.backend)

	baseURL := conn.backend.BaseURL()
	meta := types.SessionMeta{
		SessionID: uuid.NewString(),
		Endpoint:  conn.backend.WebSocketURL(),
		Backend:   &baseURL,
	}
	logger := log.NewLoggerAt(&meta, os.Stderr, level)
	defer iox.DiscardErr(logger.Sync)
	m := metrics.NewCollector(meta.SessionID, meta.Endpoint)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	opts := client.Options{
		URL:          meta.Endpoint,
		Dialer:       conn.dialer,
		Backoff:      backoff(cfg.Reconnect),
		PingInterval: pingInterval(cfg.Keepalive),
		Roster:       cfg.RosterOrDefault(),
		Logger:       logger,
		Metrics:      m,
	}
	if cfg.Capture.Path != "" {
		w, err := capture.Create(cfg.Capture.Path)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		defer iox.WarnClose(w, logger, "capture close failed")
		opts.Recorder = w
	}

	cl, err := client.New(opts)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	defer cl.Dispose()

	if !c.Bool("no-seed") {
		if state, err := conn.backend.FetchState(ctx); err != nil {
			logger.Warn("seed fetch failed, starting from roster", map[string]any{"error": err.Error()})
		} else if err := cl.Seed(state); err != nil {
			return cli.Exit(err.Error(), exitError)
		}
	}

	relayDone, err := startRelay(ctx, cfg, meta, cl, logger, m)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	if err := cl.Start(); err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	logger.Info("watch started", map[string]any{"backend": baseURL})

	if c.Bool("tui") {
		err = tui.Run(ctx, cl, m)
	} else {
		err = streamUpdates(ctx, cl, render.Output(c))
	}
	cl.Dispose()
	<-relayDone
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	final := cl.Snapshot()
	if !c.Bool("tui") {
		if err := r.Render(render.NewStateView(final.Mirror)); err != nil {
			return err
		}
	}
	if transport.IsExhausted(final.Err) {
		return cli.Exit(final.Err.Error(), exitExhausted)
	}
	return nil
}

// startRelay runs a relay when an adapter or archive is configured. The
// relay is subscribed to src when startRelay returns. The returned channel
// closes once the relay has stopped.
func startRelay(ctx context.Context, cfg *config.Config, meta types.SessionMeta, src relay.Source, logger *log.Logger, m *metrics.Collector) (<-chan struct{}, error) {
	done := make(chan struct{})

	ad, err := newAdapter(cfg.Adapter)
	if err != nil {
		return nil, err
	}
	arch, err := newArchive(ctx, cfg.Archive, meta.SessionID, m)
	if err != nil {
		if ad != nil {
			iox.DiscardClose(ad)
		}
		return nil, err
	}
	if ad == nil && arch == nil {
		close(done)
		return done, nil
	}

	rcfg := relay.Config{Session: meta, Adapter: ad, Logger: logger, Metrics: m}
	if arch != nil {
		rcfg.Archive = arch
	}
	// Subscribe before the caller starts the client so the open and the
	// first frames reach the relay.
	att := relay.New(rcfg).Attach(src)

	go func() {
		defer close(done)
		if ad != nil {
			defer iox.DiscardClose(ad)
		}
		// Keep draining after ctx ends so the terminal updates published by
		// Dispose still reach the relay; the closed stream ends Run.
		if err := att.Run(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("relay stopped", map[string]any{"error": err.Error()})
		}
	}()
	return done, nil
}

// UpdateLine is one line of newline-delimited JSON written by watch.
type UpdateLine struct {
	Seq       uint64       `json:"seq"`
	Status    string       `json:"status"`
	Type      string       `json:"type,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	Attempt   int          `json:"attempt,omitempty"`
	LatencyMs *int64       `json:"latency_ms,omitempty"`
	Error     string       `json:"error,omitempty"`
	Changes   []ChangeLine `json:"changes,omitempty"`
}

// ChangeLine summarizes one reconciled change.
type ChangeLine struct {
	Kind    string `json:"kind"`
	Agent   string `json:"agent,omitempty"`
	Status  string `json:"status,omitempty"`
	Room    string `json:"war_room_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewUpdateLine summarizes u.
func NewUpdateLine(u client.Update) UpdateLine {
	s := u.Snapshot
	line := UpdateLine{
		Seq:     s.Seq,
		Status:  s.Status.String(),
		Attempt: s.Reconnect.Attempt,
	}
	if s.Latency.Known {
		ms := s.Latency.Milliseconds()
		line.LatencyMs = &ms
	}
	if s.Err != nil {
		line.Error = s.Err.Error()
	}
	if u.Message != nil {
		env := u.Message.Meta()
		line.Type = string(env.Type)
		if !env.Timestamp.IsZero() {
			line.Timestamp = codec.FormatTime(env.Timestamp)
		}
	}
	for _, ch := range u.Changes {
		line.Changes = append(line.Changes, newChangeLine(ch))
	}
	return line
}

func newChangeLine(ch reconcile.Change) ChangeLine {
	out := ChangeLine{Kind: string(ch.Kind)}
	if ch.Agent != nil {
		out.Agent = ch.Agent.Name
		out.Status = string(ch.Agent.Status)
	}
	if ch.Room != nil {
		out.Room = ch.Room.ID
		out.Status = string(ch.Room.Status)
	}
	if ch.Event != nil {
		out.Agent = ch.Event.Agent
		out.Message = ch.Event.Message
	}
	return out
}

// streamUpdates writes one line per update that carried a message or a
// connection change, until ctx ends, the client gives up or is disposed.
// Pongs are not written.
func streamUpdates(ctx context.Context, src relay.Source, w io.Writer) error {
	updates, unsubscribe := src.Subscribe(client.DefaultSubscriberBuffer)
	defer unsubscribe()

	enc := json.NewEncoder(w)
	lastStatus := src.Snapshot().Status
	write := func(u client.Update) error {
		if _, pong := u.Message.(codec.Pong); pong {
			return nil
		}
		if u.Message == nil && u.Snapshot.Status == lastStatus {
			return nil
		}
		lastStatus = u.Snapshot.Status
		return enc.Encode(NewUpdateLine(u))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-src.Terminated():
			// Flush what the loop already published.
			for {
				select {
				case u, ok := <-updates:
					if !ok {
						return nil
					}
					if err := write(u); err != nil {
						return err
					}
				case <-time.After(50 * time.Millisecond):
					return nil
				}
			}
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := write(u); err != nil {
				return err
			}
		}
	}
}
