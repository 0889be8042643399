package galaxy

import (
	"context"
	"net/url"
)

// ShowJob returns the full view of a job, including stderr and parameters
func (c *Client) ShowJob(ctx context.Context, id string) (*Job, error) {
	job := &Job{}
	query := url.Values{"full": []string{"true"}}
	if err := c.get(ctx, "jobs/"+url.PathEscape(id), query, job); err != nil {
		return nil, err
	}
	return job, nil
}
