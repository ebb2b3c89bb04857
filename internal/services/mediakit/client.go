// Package mediakit wraps the media toolkit service that performs all
// ffmpeg-class work: probing, normalization, cropping, concat, composition,
// and trimming. Encoding internals stay on the remote side.
package mediakit

import (
	"context"
	"encoding/json"

	"clipper/internal/services"
	"clipper/internal/services/remotejob"
)

// Client calls the media toolkit job API.
type Client struct {
	jobs *remotejob.Client
}

// NewClient constructs a media toolkit client.
func NewClient(baseURL string, opts ...remotejob.Option) *Client {
	return &Client{jobs: remotejob.NewClient(baseURL, "mediakit", opts...)}
}

// ProbeResult describes a media file's measurable properties.
type ProbeResult struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
}

// Probe measures duration and geometry of a media file.
func (c *Client) Probe(ctx context.Context, path string) (ProbeResult, error) {
	var result ProbeResult
	raw, err := c.jobs.Run(ctx, "probe", map[string]any{
		"operation": "probe",
		"source":    path,
	})
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, services.Wrap(services.ErrMicroservice, "mediakit", "probe", "decode result", err)
	}
	return result, nil
}

// Normalize re-encodes a raw download into the canonical mp4 profile.
func (c *Client) Normalize(ctx context.Context, src, dst string) error {
	_, err := c.jobs.Run(ctx, "normalize", map[string]any{
		"operation":   "normalize",
		"source":      src,
		"destination": dst,
	})
	return err
}

// Crop re-frames a clip to the target aspect ratio, replacing dst in place.
func (c *Client) Crop(ctx context.Context, src, dst, aspect string) error {
	_, err := c.jobs.Run(ctx, "crop", map[string]any{
		"operation":   "crop",
		"source":      src,
		"destination": dst,
		"aspect":      aspect,
	})
	return err
}

// Concat joins the given parts, in order, into a single file.
func (c *Client) Concat(ctx context.Context, parts []string, dst string) error {
	if len(parts) == 0 {
		return services.Wrap(services.ErrValidation, "mediakit", "concat", "no input parts", nil)
	}
	_, err := c.jobs.Run(ctx, "concat", map[string]any{
		"operation":   "concat",
		"parts":       parts,
		"destination": dst,
	})
	return err
}

// Compose burns subtitles onto the video and muxes the audio track over it.
// The subtitles path may be empty when no cues were generated.
func (c *Client) Compose(ctx context.Context, video, audio, subtitles, dst string) error {
	payload := map[string]any{
		"operation":   "compose",
		"video":       video,
		"audio":       audio,
		"destination": dst,
	}
	if subtitles != "" {
		payload["subtitles"] = subtitles
	}
	_, err := c.jobs.Run(ctx, "compose", payload)
	return err
}

// Trim cuts the composition down to the requested duration in seconds.
func (c *Client) Trim(ctx context.Context, src, dst string, seconds float64) error {
	_, err := c.jobs.Run(ctx, "trim", map[string]any{
		"operation":   "trim",
		"source":      src,
		"destination": dst,
		"seconds":     seconds,
	})
	return err
}

// Healthy probes the service health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.jobs.Healthy(ctx)
}
