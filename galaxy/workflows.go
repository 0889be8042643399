package galaxy

import (
	"context"
	"fmt"
	"net/url"
)

// ListPublishedWorkflows returns the workflows published on the instance
func (c *Client) ListPublishedWorkflows(ctx context.Context) ([]Workflow, error) {
	workflows := []Workflow{}
	query := url.Values{"show_published": []string{"true"}}
	if err := c.get(ctx, "workflows", query, &workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

// ShowWorkflow returns a workflow with its input steps
func (c *Client) ShowWorkflow(ctx context.Context, id string) (*WorkflowDetails, error) {
	workflow := &WorkflowDetails{}
	if err := c.get(ctx, "workflows/"+url.PathEscape(id), nil, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

// InvokeWorkflow schedules a workflow run
func (c *Client) InvokeWorkflow(ctx context.Context, workflowID string, request *InvocationRequest) (*Invocation, error) {
	invocation := &Invocation{}
	path := fmt.Sprintf("workflows/%v/invocations", url.PathEscape(workflowID))
	if err := c.post(ctx, path, request, invocation); err != nil {
		return nil, err
	}
	return invocation, nil
}

// ListInvocations lists the invocations of a workflow, optionally restricted to one history
func (c *Client) ListInvocations(ctx context.Context, workflowID, historyID string) ([]Invocation, error) {
	query := url.Values{
		"include_terminal": []string{"true"},
		"view":             []string{"collection"},
	}
	if historyID != "" {
		query.Set("history_id", historyID)
	}
	invocations := []Invocation{}
	path := fmt.Sprintf("workflows/%v/invocations", url.PathEscape(workflowID))
	if err := c.get(ctx, path, query, &invocations); err != nil {
		return nil, err
	}
	return invocations, nil
}

// CancelInvocation ..
func (c *Client) CancelInvocation(ctx context.Context, workflowID, invocationID string) error {
	path := fmt.Sprintf("workflows/%v/invocations/%v", url.PathEscape(workflowID), url.PathEscape(invocationID))
	return c.delete(ctx, path, nil)
}
