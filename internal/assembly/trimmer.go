package assembly

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
	"clipper/internal/stage"
)

// Trimmer is the trimming stage handler. It cuts the composition to the
// target duration and enforces the final duration contract: within
// tolerance of audio plus padding, and never shorter than the narration.
type Trimmer struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	media   MediaToolkit
	retries *backoff.Executor
}

// NewTrimmer constructs the handler with the default toolkit client.
func NewTrimmer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Trimmer {
	polling := remotejob.PollingSeconds(cfg.Services.PollInterval, cfg.Services.PollTimeout)
	return NewTrimmerWithDependencies(cfg, store, logger, mediakit.NewClient(cfg.Services.MediaKitURL, polling))
}

// NewTrimmerWithDependencies allows injecting the toolkit (used in tests).
func NewTrimmerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, media MediaToolkit) *Trimmer {
	return &Trimmer{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "trimming"),
		media:   media,
		retries: backoff.FromDurations(cfg.Workflow.BackoffBase, cfg.Workflow.BackoffMax, cfg.Workflow.BackoffCeiling),
	}
}

func (t *Trimmer) Name() queue.Status { return queue.StatusTrimming }

// Done is satisfied once the final file exists.
func (t *Trimmer) Done(_ context.Context, job *queue.Job) (bool, error) {
	return job.FinalFile != "" && fileutil.Exists(job.FinalFile), nil
}

func (t *Trimmer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)
	if job.ComposedFile == "" || !fileutil.Exists(job.ComposedFile) {
		return services.Wrap(services.ErrValidation, "trimming", "validate inputs",
			"composed file missing; composition stage did not run", nil)
	}
	if job.TargetDuration <= 0 || job.AudioDuration <= 0 {
		return services.Wrap(services.ErrValidation, "trimming", "validate inputs",
			"durations not recorded; audio analysis did not run", nil)
	}

	retries := *t.retries
	retries.OnAttempt = stage.RetryObserver(ctx, t.store, job, queue.StatusTrimming)

	finalPath := filepath.Join(job.WorkDir, finalFilename)
	err := retries.Execute(ctx, logger, "trim", func(ctx context.Context) error {
		return t.media.Trim(ctx, job.ComposedFile, finalPath, job.TargetDuration)
	})
	if err != nil {
		return err
	}

	var probed mediakit.ProbeResult
	err = retries.Execute(ctx, logger, "probe final", func(ctx context.Context) error {
		var probeErr error
		probed, probeErr = t.media.Probe(ctx, finalPath)
		return probeErr
	})
	if err != nil {
		return err
	}

	if !withinTolerance(probed.Duration, job.TargetDuration, t.cfg.Pipeline.DurationTolerance) {
		return services.Wrap(services.ErrProcessing, "trimming", "verify duration",
			fmt.Sprintf("final %.2fs differs from target %.2fs beyond %.1fs tolerance",
				probed.Duration, job.TargetDuration, t.cfg.Pipeline.DurationTolerance), nil)
	}
	// The short must never end before the narration does.
	floor := job.AudioDuration - t.cfg.Pipeline.KeyframeTolerance
	if probed.Duration < floor {
		return services.Wrap(services.ErrProcessing, "trimming", "verify duration",
			fmt.Sprintf("final %.2fs truncates %.2fs narration", probed.Duration, job.AudioDuration), nil)
	}

	job.FinalFile = finalPath
	job.MergeStageInfo(queue.StatusTrimming, queue.StageInfo{DurationSeconds: probed.Duration})
	logger.Info("final file trimmed",
		logging.Float64("duration", probed.Duration),
		logging.String("path", finalPath),
	)
	return nil
}

func (t *Trimmer) HealthCheck(ctx context.Context) stage.Health {
	if err := t.media.Healthy(ctx); err != nil {
		return stage.Unhealthy("trimming", "media toolkit unreachable: "+err.Error())
	}
	return stage.Healthy("trimming")
}
