package subtitles

import (
	"context"
	"log/slog"
	"path/filepath"

	"clipper/internal/config"
	"clipper/internal/fileutil"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/services/detector"
	"clipper/internal/services/remotejob"
	"clipper/internal/services/transcriber"
	"clipper/internal/stage"
)

const outputFilename = "subtitles.ass"

// OutputPath is where the handler writes the subtitle file for a job.
func OutputPath(workDir string) string {
	return filepath.Join(workDir, outputFilename)
}

// SpeechDetector finds speech regions for cue alignment.
type SpeechDetector interface {
	DetectSpeech(ctx context.Context, audioPath string) ([]detector.SpeechSegment, bool, error)
}

// Handler is the generating_subtitles stage. It builds display cues from
// the transcript and aligns them to detected speech when the detector is
// available; alignment is best-effort and never fails the stage.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
	vad    SpeechDetector
}

// NewHandler constructs the handler with the default detector client.
func NewHandler(cfg *config.Config, logger *slog.Logger) *Handler {
	polling := remotejob.PollingSeconds(cfg.Services.PollInterval, cfg.Services.PollTimeout)
	return NewHandlerWithDependencies(cfg, logger, detector.NewClient(cfg.Services.DetectorURL, polling))
}

// NewHandlerWithDependencies allows injecting the detector (used in tests).
func NewHandlerWithDependencies(cfg *config.Config, logger *slog.Logger, vad SpeechDetector) *Handler {
	return &Handler{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "subtitles"),
		vad:    vad,
	}
}

func (h *Handler) Name() queue.Status { return queue.StatusGeneratingSubtitles }

// Done is satisfied once the subtitle file exists.
func (h *Handler) Done(_ context.Context, job *queue.Job) (bool, error) {
	return fileutil.Exists(OutputPath(job.WorkDir)), nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	if job.TranscriptPath == "" || !fileutil.Exists(job.TranscriptPath) {
		return services.Wrap(services.ErrValidation, "generating_subtitles", "validate inputs",
			"transcript missing; audio analysis did not run", nil)
	}
	segments, err := transcriber.LoadSegments(job.TranscriptPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "generating_subtitles", "load transcript",
			"transcript unreadable", err)
	}

	cues := BuildCues(segments)
	vadOK := false
	if len(cues) > 0 && job.AudioPath != "" {
		speech, ok, vadErr := h.vad.DetectSpeech(ctx, job.AudioPath)
		if vadErr != nil {
			return vadErr
		}
		if ok {
			cues = AlignCues(cues, speech)
			vadOK = true
		}
	}

	outputPath := OutputPath(job.WorkDir)
	if err := WriteASS(outputPath, cues); err != nil {
		return services.Wrap(services.ErrResource, "generating_subtitles", "write subtitles",
			"write subtitle file", err)
	}
	if !vadOK {
		job.MergeStageInfo(queue.StatusGeneratingSubtitles, queue.StageInfo{
			Warning: "speech detection unavailable; cue timing unaligned",
		})
	}
	logger.Info("subtitles written",
		logging.Int("cues", len(cues)),
		logging.Bool("vad_aligned", vadOK),
	)
	return nil
}

func (h *Handler) HealthCheck(context.Context) stage.Health {
	// The stage degrades gracefully without the detector.
	return stage.Healthy("generating_subtitles")
}
