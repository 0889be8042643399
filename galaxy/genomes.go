package galaxy

import "context"

// ListGenomes returns the reference genomes installed on the instance
func (c *Client) ListGenomes(ctx context.Context) ([]Genome, error) {
	genomes := []Genome{}
	if err := c.get(ctx, "genomes", nil, &genomes); err != nil {
		return nil, err
	}
	return genomes, nil
}
