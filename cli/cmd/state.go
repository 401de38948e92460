package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/warroom/backend"
	"github.com/pithecene-io/warroom/cli/render"
	"github.com/pithecene-io/warroom/cli/tui"
	"github.com/pithecene-io/warroom/client"
	"github.com/pithecene-io/warroom/reconcile"
	"github.com/pithecene-io/warroom/transport"
)

// ActionResponse is rendered by commands that only report success.
type ActionResponse struct {
	Action  string `json:"action"`
	OK      bool   `json:"ok"`
	Backend string `json:"backend"`
}

// StateCommand returns the state command.
func StateCommand() *cli.Command {
	return &cli.Command{
		Name:   "state",
		Usage:  "Fetch the full backend state once",
		Flags:  BackendFlags(),
		Action: stateAction,
	}
}

func stateAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return withBackend(c, func(ctx context.Context, bc *backend.Client) error {
		state, err := bc.FetchState(ctx)
		if err != nil {
			return err
		}
		if c.Bool("tui") {
			mirror := reconcile.NewMirror(nil).Seed(state)
			_, err := fmt.Fprintln(render.Output(c), tui.RenderStatic(&client.Snapshot{Status: transport.Idle, Mirror: mirror}, nil))
			return err
		}
		return r.Render(render.NewSeedView(state))
	})
}

// TriggerCommand returns the trigger command.
func TriggerCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Start a simulated incident",
		Flags: append(BackendFlags(), &cli.StringFlag{
			Name:  "payload",
			Usage: "JSON body sent with the trigger request",
		}),
		Action: triggerAction,
	}
}

func triggerAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for trigger command", exitError)
	}
	payload, err := parsePayload(c.String("payload"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	return withBackend(c, func(ctx context.Context, bc *backend.Client) error {
		if err := bc.Trigger(ctx, payload); err != nil {
			return err
		}
		return r.Render(ActionResponse{Action: "trigger", OK: true, Backend: bc.BaseURL()})
	})
}

// ResetCommand returns the reset command.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:   "reset",
		Usage:  "Return the backend to its initial state",
		Flags:  BackendFlags(),
		Action: resetAction,
	}
}

func resetAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for reset command", exitError)
	}
	return withBackend(c, func(ctx context.Context, bc *backend.Client) error {
		if err := bc.Reset(ctx); err != nil {
			return err
		}
		return r.Render(ActionResponse{Action: "reset", OK: true, Backend: bc.BaseURL()})
	})
}

// parsePayload decodes an optional JSON request body. Empty means no body.
func parsePayload(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid --payload JSON: %w", err)
	}
	return v, nil
}
