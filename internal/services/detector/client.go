// Package detector wraps the content detection service. Frame analysis
// decides clip approval; voice activity detection aligns subtitle cues.
package detector

import (
	"context"
	"encoding/json"

	"clipper/internal/services"
	"clipper/internal/services/remotejob"
)

// VAD engine names accepted by the service.
const (
	EnginePrimary  = "primary"
	EngineFallback = "fallback"
)

// Detection is the frame-analysis verdict for a video file. UnwantedContent
// set means the clip must be rejected; FramesProcessed of zero means the
// asset could not be decoded at all and the other fields are meaningless.
type Detection struct {
	UnwantedContent   bool    `json:"has_unwanted_content"`
	Confidence        float64 `json:"confidence"`
	Sample            string  `json:"sample"`
	FramesProcessed   int     `json:"frames_processed"`
	FramesWithContent int     `json:"frames_with_content"`
}

// SpeechSegment is one detected region of speech.
type SpeechSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Client calls the detector job API.
type Client struct {
	jobs *remotejob.Client
}

// NewClient constructs a detector client.
func NewClient(baseURL string, opts ...remotejob.Option) *Client {
	return &Client{jobs: remotejob.NewClient(baseURL, "downloading_candidates", opts...)}
}

// Detect analyzes a video's frames for unwanted content.
func (c *Client) Detect(ctx context.Context, videoPath string) (Detection, error) {
	var result Detection
	if videoPath == "" {
		return result, services.Wrap(services.ErrValidation, "downloading_candidates", "detect", "video path required", nil)
	}
	raw, err := c.jobs.Run(ctx, "detect", map[string]any{
		"operation": "detect",
		"source":    videoPath,
	})
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, services.Wrap(services.ErrMicroservice, "downloading_candidates", "detect", "decode result", err)
	}
	return result, nil
}

// DetectSpeech finds speech regions in an audio file. The primary VAD engine
// is tried first, then the fallback engine; when both fail the caller gets
// ok=false and no error, since subtitle alignment degrades gracefully.
func (c *Client) DetectSpeech(ctx context.Context, audioPath string) ([]SpeechSegment, bool, error) {
	if audioPath == "" {
		return nil, false, services.Wrap(services.ErrValidation, "generating_subtitles", "detect speech", "audio path required", nil)
	}
	for _, engine := range []string{EnginePrimary, EngineFallback} {
		segments, err := c.detectSpeech(ctx, audioPath, engine)
		if err == nil {
			return segments, true, nil
		}
		if ctx.Err() != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}

func (c *Client) detectSpeech(ctx context.Context, audioPath, engine string) ([]SpeechSegment, error) {
	raw, err := c.jobs.Run(ctx, "detect speech", map[string]any{
		"operation": "detect_speech",
		"source":    audioPath,
		"engine":    engine,
	})
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Segments []SpeechSegment `json:"segments"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, services.Wrap(services.ErrMicroservice, "generating_subtitles", "detect speech", "decode result", err)
	}
	return decoded.Segments, nil
}

// Healthy probes the service health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	return c.jobs.Healthy(ctx)
}
