// Package downloader wraps the clip download service that fetches raw
// candidate media into the shared pool.
package downloader

import (
	"context"
	"encoding/json"

	"clipper/internal/services"
	"clipper/internal/services/remotejob"
)

// Result describes a completed download.
type Result struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
}

// Client calls the downloader job API.
type Client struct {
	jobs *remotejob.Client
}

// NewClient constructs a downloader client.
func NewClient(baseURL string, opts ...remotejob.Option) *Client {
	return &Client{jobs: remotejob.NewClient(baseURL, "downloading_candidates", opts...)}
}

// Download fetches a clip by id into destDir and reports the local file.
func (c *Client) Download(ctx context.Context, clipID, destDir string) (Result, error) {
	var result Result
	if clipID == "" {
		return result, services.Wrap(services.ErrValidation, "downloading_candidates", "download", "clip id required", nil)
	}
	raw, err := c.jobs.Run(ctx, "download", map[string]any{
		"clip_id":  clipID,
		"dest_dir": destDir,
	})
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, services.Wrap(services.ErrMicroservice, "downloading_candidates", "download", "decode result", err)
	}
	if result.Path == "" {
		return result, services.Wrap(services.ErrMicroservice, "downloading_candidates", "download", "result missing path", nil)
	}
	return result, nil
}

// Healthy probes the service health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.jobs.Healthy(ctx)
}
