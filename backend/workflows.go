package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pithecene-io/warroom/types"
)

// ExecuteResult is the response to a workflow execution request.
type ExecuteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// Raw is the full response document.
	Raw map[string]any `json:"-"`
}

// ListWorkflows returns every workflow.
func (c *Client) ListWorkflows(ctx context.Context) ([]types.Workflow, error) {
	raw, err := c.do(ctx, http.MethodGet, "/workflows", nil)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Workflows []types.Workflow `json:"workflows"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("backend: decode workflows: %w", err)
	}
	if doc.Workflows == nil {
		doc.Workflows = []types.Workflow{}
	}
	return doc.Workflows, nil
}

// GetWorkflow returns one workflow.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*types.Workflow, error) {
	raw, err := c.do(ctx, http.MethodGet, workflowPath(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(raw)
}

// CreateWorkflow creates a workflow and returns it as stored.
func (c *Client) CreateWorkflow(ctx context.Context, spec types.WorkflowSpec) (*types.Workflow, error) {
	raw, err := c.do(ctx, http.MethodPost, "/workflows", spec)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(raw)
}

// UpdateWorkflow replaces a workflow definition.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, spec types.WorkflowSpec) (*types.Workflow, error) {
	raw, err := c.do(ctx, http.MethodPut, workflowPath(id), spec)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(raw)
}

// DeleteWorkflow removes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, workflowPath(id), nil)
	return err
}

// ToggleWorkflow flips a workflow between active and inactive.
func (c *Client) ToggleWorkflow(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, workflowPath(id)+"/toggle", nil)
	return err
}

// ExecuteWorkflow runs a workflow with the given trigger payload.
func (c *Client) ExecuteWorkflow(ctx context.Context, id string, payload any) (*ExecuteResult, error) {
	raw, err := c.do(ctx, http.MethodPost, workflowPath(id)+"/execute", payload)
	if err != nil {
		return nil, err
	}
	result := &ExecuteResult{}
	if len(raw) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("backend: decode execute result: %w", err)
	}
	_ = json.Unmarshal(raw, &result.Raw)
	return result, nil
}

func workflowPath(id string) string {
	return "/workflows/" + url.PathEscape(id)
}

// decodeWorkflow accepts both {"workflow": {...}} and a bare workflow.
func decodeWorkflow(raw []byte) (*types.Workflow, error) {
	var wrapped struct {
		Workflow *types.Workflow `json:"workflow"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("backend: decode workflow: %w", err)
	}
	if wrapped.Workflow != nil {
		return wrapped.Workflow, nil
	}
	var wf types.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("backend: decode workflow: %w", err)
	}
	return &wf, nil
}
