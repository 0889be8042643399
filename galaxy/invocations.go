package galaxy

import (
	"context"
	"fmt"
	"net/url"
)

// ShowInvocation returns an invocation with its outputs and steps
func (c *Client) ShowInvocation(ctx context.Context, id string) (*Invocation, error) {
	invocation := &Invocation{}
	if err := c.get(ctx, "invocations/"+url.PathEscape(id), nil, invocation); err != nil {
		return nil, err
	}
	return invocation, nil
}

// ShowInvocationStep returns a step with the jobs it ran
func (c *Client) ShowInvocationStep(ctx context.Context, invocationID, stepID string) (*InvocationStep, error) {
	step := &InvocationStep{}
	path := fmt.Sprintf("invocations/%v/steps/%v", url.PathEscape(invocationID), url.PathEscape(stepID))
	if err := c.get(ctx, path, nil, step); err != nil {
		return nil, err
	}
	return step, nil
}
