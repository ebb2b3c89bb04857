// Package assembly implements the three media-composition stages: joining
// the selected clips, composing the final video with subtitles and the
// narration track, and trimming to the target duration. Duration checks at
// each boundary keep the media toolkit honest; a result outside tolerance
// fails the job rather than publishing a broken short.
package assembly

import (
	"context"
	"math"

	"clipper/internal/services/mediakit"
)

// MediaToolkit is the slice of the media toolkit the assembly stages use.
type MediaToolkit interface {
	Probe(ctx context.Context, path string) (mediakit.ProbeResult, error)
	Concat(ctx context.Context, parts []string, dst string) error
	Compose(ctx context.Context, video, audio, subtitles, dst string) error
	Trim(ctx context.Context, src, dst string, seconds float64) error
	Healthy(ctx context.Context) error
}

const (
	assembledFilename = "assembled.mp4"
	composedFilename  = "composed.mp4"
	finalFilename     = "final.mp4"
)

func withinTolerance(actual, expected, tolerance float64) bool {
	return math.Abs(actual-expected) <= tolerance
}
