package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/warroom/backend"
	"github.com/pithecene-io/warroom/cli/render"
	"github.com/pithecene-io/warroom/types"
)

// ExecuteResponse is rendered by workflows execute.
type ExecuteResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WorkflowsCommand returns the workflows command group.
func WorkflowsCommand() *cli.Command {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Usage:    "Workflow definition (YAML or JSON)",
		Required: true,
	}
	return &cli.Command{
		Name:  "workflows",
		Usage: "Manage backend incident workflows",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List workflows",
				Flags:  BackendFlags(),
				Action: workflowsListAction,
			},
			{
				Name:      "show",
				Usage:     "Show one workflow",
				ArgsUsage: "<id>",
				Flags:     BackendFlags(),
				Action:    workflowsShowAction,
			},
			{
				Name:   "create",
				Usage:  "Create a workflow from a file",
				Flags:  append(BackendFlags(), fileFlag),
				Action: workflowsCreateAction,
			},
			{
				Name:      "update",
				Usage:     "Replace a workflow from a file",
				ArgsUsage: "<id>",
				Flags:     append(BackendFlags(), fileFlag),
				Action:    workflowsUpdateAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a workflow",
				ArgsUsage: "<id>",
				Flags:     BackendFlags(),
				Action:    workflowsDeleteAction,
			},
			{
				Name:      "toggle",
				Usage:     "Activate or deactivate a workflow",
				ArgsUsage: "<id>",
				Flags:     BackendFlags(),
				Action:    workflowsToggleAction,
			},
			{
				Name:      "execute",
				Usage:     "Run a workflow",
				ArgsUsage: "<id>",
				Flags: append(BackendFlags(), &cli.StringFlag{
					Name:  "payload",
					Usage: "JSON trigger payload",
				}),
				Action: workflowsExecuteAction,
			},
		},
	}
}

// workflowAction validates the common parts of a workflow subcommand and
// runs fn with the renderer, the backend and the <id> argument.
func workflowAction(c *cli.Context, needID bool, fn func(ctx context.Context, r *render.Renderer, bc *backend.Client, id string) error) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit(fmt.Sprintf("--tui is not supported for workflows %s", c.Command.Name), exitError)
	}
	id := c.Args().First()
	if needID && id == "" {
		return cli.Exit(fmt.Sprintf("workflows %s requires a workflow id", c.Command.Name), exitError)
	}
	return withBackend(c, func(ctx context.Context, bc *backend.Client) error {
		return fn(ctx, r, bc, id)
	})
}

func workflowsListAction(c *cli.Context) error {
	return workflowAction(c, false, func(ctx context.Context, r *render.Renderer, bc *backend.Client, _ string) error {
		workflows, err := bc.ListWorkflows(ctx)
		if err != nil {
			return err
		}
		if r.Format() == render.FormatTable {
			return r.Render(render.NewWorkflowRows(workflows))
		}
		return r.Render(workflows)
	})
}

func workflowsShowAction(c *cli.Context) error {
	return workflowAction(c, true, func(ctx context.Context, r *render.Renderer, bc *backend.Client, id string) error {
		wf, err := bc.GetWorkflow(ctx, id)
		if err != nil {
			return err
		}
		return renderWorkflow(r, wf)
	})
}

func workflowsCreateAction(c *cli.Context) error {
	spec, err := readWorkflowSpec(c.String("file"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	return workflowAction(c, false, func(ctx context.Context, r *render.Renderer, bc *backend.Client, _ string) error {
		wf, err := bc.CreateWorkflow(ctx, *spec)
		if err != nil {
			return err
		}
		return renderWorkflow(r, wf)
	})
}

func workflowsUpdateAction(c *cli.Context) error {
	spec, err := readWorkflowSpec(c.String("file"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	return workflowAction(c, true, func(ctx context.Context, r *render.Renderer, bc *backend.Client, id string) error {
		wf, err := bc.UpdateWorkflow(ctx, id, *spec)
		if err != nil {
			return err
		}
		return renderWorkflow(r, wf)
	})
}

func workflowsDeleteAction(c *cli.Context) error {
	return workflowAction(c, true, func(ctx context.Context, r *render.Renderer, bc *backend.Client, id string) error {
		if err := bc.DeleteWorkflow(ctx, id); err != nil {
			return err
		}
		return r.Render(ActionResponse{Action: "delete " + id, OK: true, Backend: bc.BaseURL()})
	})
}

func workflowsToggleAction(c *cli.Context) error {
	return workflowAction(c, true, func(ctx context.Context, r *render.Renderer, bc *backend.Client, id string) error {
		if err := bc.ToggleWorkflow(ctx, id); err != nil {
			return err
		}
		return r.Render(ActionResponse{Action: "toggle " + id, OK: true, Backend: bc.BaseURL()})
	})
}

func workflowsExecuteAction(c *cli.Context) error {
	payload, err := parsePayload(c.String("payload"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	return workflowAction(c, true, func(ctx context.Context, r *render.Renderer, bc *backend.Client, id string) error {
		res, err := bc.ExecuteWorkflow(ctx, id, payload)
		if err != nil {
			return err
		}
		return r.Render(ExecuteResponse{ID: id, Success: res.Success, Message: res.Message})
	})
}

// renderWorkflow shows a single workflow; tables get the summary row.
func renderWorkflow(r *render.Renderer, wf *types.Workflow) error {
	if r.Format() == render.FormatTable {
		return r.Render(render.NewWorkflowRows([]types.Workflow{*wf}))
	}
	return r.Render(wf)
}

// readWorkflowSpec reads a workflow definition. JSON files parse as YAML.
func readWorkflowSpec(path string) (*types.WorkflowSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read workflow file %q: %w", path, err)
	}
	var spec types.WorkflowSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("invalid workflow file %s: %w", path, err)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("invalid workflow file %s: name is required", path)
	}
	return &spec, nil
}
