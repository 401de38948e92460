package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/warroom/capture"
	"github.com/pithecene-io/warroom/cli/render"
	"github.com/pithecene-io/warroom/cli/tui"
	"github.com/pithecene-io/warroom/client"
	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/metrics"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/transport"
	"github.com/pithecene-io/warroom/types"
)

// ReplayCommand returns the replay command.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Re-run decoding and reconciliation over a capture file",
		ArgsUsage: "<capture-file>",
		Flags: append(ReadOnlyFlags(), ConfigFlag, &cli.BoolFlag{
			Name:  "archive",
			Usage: "Write the replayed changes to the configured archive",
		}),
		Action: replayAction,
	}
}

// replaySessionID tags metrics and archived records of a replay.
const replaySessionID = "replay"

// replayResult is the outcome of replaying one capture.
type replayResult struct {
	view    render.ReplayView
	mirror  *reconcile.Mirror
	metrics *metrics.Collector
	changes []reconcile.Change
}

func replayAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	path := c.Args().First()
	if path == "" {
		return cli.Exit("replay requires a capture file", exitError)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	res, err := replay(path, cfg.RosterOrDefault())
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	if c.Bool("archive") {
		if cfg.Archive.Backend == "" {
			return cli.Exit("--archive requires an archive section in the config", exitError)
		}
		arch, err := newArchive(c.Context, cfg.Archive, replaySessionID, res.metrics)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		if err := arch.WriteChanges(c.Context, res.changes); err != nil {
			return cli.Exit(err.Error(), exitError)
		}
	}

	if c.Bool("tui") {
		_, err := fmt.Fprintln(render.Output(c), tui.RenderStatic(&client.Snapshot{Status: transport.Idle, Mirror: res.mirror}, res.metrics))
		return err
	}
	return r.Render(res.view)
}

// replay decodes and reconciles every record in the capture at path.
// Records are applied at their receipt time.
func replay(path string, roster []types.AgentRecord) (*replayResult, error) {
	records, truncated, err := capture.ReadAll(path)
	if err != nil {
		return nil, err
	}

	m := metrics.NewCollector(replaySessionID, "")
	mirror := reconcile.NewMirror(roster)
	var changes []reconcile.Change

	for _, rec := range records {
		m.IncFramesReceived()
		msg, err := codec.Decode(rec.Frame)
		if err != nil {
			m.IncFramesMalformed()
			continue
		}
		kind := string(msg.Meta().Type)
		m.IncEnvelope(kind)
		if _, ok := msg.(codec.Unrecognized); ok {
			m.IncUnrecognized()
		}

		var step []reconcile.Change
		mirror, step = reconcile.Step(mirror, msg, rec.ReceivedAt)
		changes = append(changes, step...)
	}

	snap := m.Snapshot()
	view := render.ReplayView{
		Path:         path,
		Frames:       snap.FramesReceived,
		Malformed:    snap.FramesMalformed,
		Unrecognized: snap.Unrecognized,
		Truncated:    truncated,
		ByKind:       render.NewKindCounts(snap.EnvelopesByKind),
		State:        render.NewStateView(mirror),
	}
	if len(records) > 0 {
		view.First = codec.FormatTime(records[0].ReceivedAt)
		view.Last = codec.FormatTime(records[len(records)-1].ReceivedAt)
	}

	return &replayResult{view: view, mirror: mirror, metrics: m, changes: changes}, nil
}
