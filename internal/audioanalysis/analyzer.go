// Package audioanalysis implements the first pipeline stage: measuring the
// narration audio and producing the word-level transcript that later stages
// build subtitles from.
package audioanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"clipper/internal/backoff"
	"clipper/internal/config"
	"clipper/internal/fileutil"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/services/mediakit"
	"clipper/internal/services/remotejob"
	"clipper/internal/services/transcriber"
	"clipper/internal/stage"
)

// AudioProber measures media files.
type AudioProber interface {
	Probe(ctx context.Context, path string) (mediakit.ProbeResult, error)
	Healthy(ctx context.Context) error
}

// Transcriber produces word-level transcripts.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]transcriber.Segment, error)
	Healthy(ctx context.Context) error
}

// Analyzer is the analyzing_audio stage handler.
type Analyzer struct {
	cfg         *config.Config
	store       *queue.Store
	logger      *slog.Logger
	prober      AudioProber
	transcriber Transcriber
	retries     *backoff.Executor
}

// NewAnalyzer constructs the handler with its default collaborator clients.
func NewAnalyzer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Analyzer {
	polling := remotejob.PollingSeconds(cfg.Services.PollInterval, cfg.Services.PollTimeout)
	return NewAnalyzerWithDependencies(cfg, store, logger,
		mediakit.NewClient(cfg.Services.MediaKitURL, polling),
		transcriber.NewClient(cfg.Services.TranscriberURL, polling),
	)
}

// NewAnalyzerWithDependencies allows injecting collaborators (used in tests).
func NewAnalyzerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, prober AudioProber, scribe Transcriber) *Analyzer {
	return &Analyzer{
		cfg:         cfg,
		store:       store,
		logger:      logging.NewComponentLogger(logger, "audio-analysis"),
		prober:      prober,
		transcriber: scribe,
		retries:     backoff.FromDurations(cfg.Workflow.BackoffBase, cfg.Workflow.BackoffMax, cfg.Workflow.BackoffCeiling),
	}
}

func (a *Analyzer) Name() queue.Status { return queue.StatusAnalyzingAudio }

// Done reports whether a previous run already produced the transcript and
// recorded the audio duration, so a resumed job skips straight past.
func (a *Analyzer) Done(_ context.Context, job *queue.Job) (bool, error) {
	return job.AudioDuration > 0 &&
		job.TargetDuration > 0 &&
		job.TranscriptPath != "" &&
		fileutil.Exists(job.TranscriptPath), nil
}

func (a *Analyzer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, a.logger)
	if job.AudioPath == "" || !fileutil.Exists(job.AudioPath) {
		return services.Wrap(services.ErrValidation, "analyzing_audio", "validate inputs",
			fmt.Sprintf("narration audio missing: %s", job.AudioPath), nil)
	}

	retries := *a.retries
	retries.OnAttempt = stage.RetryObserver(ctx, a.store, job, queue.StatusAnalyzingAudio)

	var probed mediakit.ProbeResult
	err := retries.Execute(ctx, logger, "probe audio", func(ctx context.Context) error {
		var probeErr error
		probed, probeErr = a.prober.Probe(ctx, job.AudioPath)
		return probeErr
	})
	if err != nil {
		return err
	}
	if probed.Duration <= 0 {
		return services.Wrap(services.ErrProcessing, "analyzing_audio", "probe audio",
			"audio reports zero duration", nil)
	}
	job.AudioDuration = probed.Duration
	job.TargetDuration = probed.Duration + a.cfg.Pipeline.PaddingSeconds
	logger.Info("audio measured",
		logging.Float64("audio_duration", job.AudioDuration),
		logging.Float64("target_duration", job.TargetDuration),
	)

	var segments []transcriber.Segment
	err = retries.Execute(ctx, logger, "transcribe", func(ctx context.Context) error {
		var trErr error
		segments, trErr = a.transcriber.Transcribe(ctx, job.AudioPath, a.cfg.Pipeline.Language)
		return trErr
	})
	if err != nil {
		return err
	}

	transcriptPath := filepath.Join(job.WorkDir, "transcript.json")
	if err := transcriber.SaveSegments(transcriptPath, segments); err != nil {
		return services.Wrap(services.ErrResource, "analyzing_audio", "save transcript", "write transcript", err)
	}
	job.TranscriptPath = transcriptPath
	logger.Info("transcript saved",
		logging.Int("segments", len(segments)),
		logging.String("path", transcriptPath),
	)
	return nil
}

func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	if err := a.prober.Healthy(ctx); err != nil {
		return stage.Unhealthy("analyzing_audio", "media toolkit unreachable: "+err.Error())
	}
	if err := a.transcriber.Healthy(ctx); err != nil {
		return stage.Unhealthy("analyzing_audio", "transcriber unreachable: "+err.Error())
	}
	return stage.Healthy("analyzing_audio")
}
