// Package shorts wraps the short-video discovery service used to find
// candidate clips for a query.
package shorts

import (
	"context"
	"encoding/json"
	"strings"

	"clipper/internal/services"
	"clipper/internal/services/remotejob"
)

// Candidate is one clip returned by a search.
type Candidate struct {
	ClipID   string  `json:"clip_id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Client calls the shorts provider job API.
type Client struct {
	jobs *remotejob.Client
}

// NewClient constructs a shorts provider client.
func NewClient(baseURL string, opts ...remotejob.Option) *Client {
	return &Client{jobs: remotejob.NewClient(baseURL, "fetching_candidates", opts...)}
}

// Search submits a query and waits for the candidate list.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "fetching_candidates", "search", "query required", nil)
	}
	raw, err := c.jobs.Run(ctx, "search", map[string]any{
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrMicroservice, "fetching_candidates", "search", "decode result", err)
	}
	return payload.Candidates, nil
}

// Healthy probes the service health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.jobs.Healthy(ctx)
}
