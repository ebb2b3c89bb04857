// Package transcriber wraps the speech-to-text service that produces the
// word-level transcript driving subtitle generation.
package transcriber

import (
	"context"
	"encoding/json"
	"strings"

	"clipper/internal/services"
	"clipper/internal/services/remotejob"
)

// Word is a single recognized word with timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a transcribed phrase with word-level timing.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

// Client calls the transcriber job API.
type Client struct {
	jobs *remotejob.Client
}

// NewClient constructs a transcriber client.
func NewClient(baseURL string, opts ...remotejob.Option) *Client {
	return &Client{jobs: remotejob.NewClient(baseURL, "analyzing_audio", opts...)}
}

// Transcribe submits an audio file and waits for its segments. Callers run
// this through the backoff executor; the service loads large models and is
// the collaborator most likely to be briefly unavailable.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) ([]Segment, error) {
	if audioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "analyzing_audio", "transcribe", "audio path required", nil)
	}
	payload := map[string]any{"audio_path": audioPath}
	if language = strings.TrimSpace(language); language != "" {
		payload["language"] = language
	}
	raw, err := c.jobs.Run(ctx, "transcribe", payload)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, services.Wrap(services.ErrMicroservice, "analyzing_audio", "transcribe", "decode result", err)
	}
	return decoded.Segments, nil
}

// Text flattens segments into a plain transcript string.
func Text(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Healthy probes the service health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.jobs.Healthy(ctx)
}
