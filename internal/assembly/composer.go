package assembly

import (
	"context"
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
	"clipper/internal/subtitles"
)

// Composer is the final_composition stage handler. It burns the subtitle
// track onto the assembled video and muxes the narration audio over it.
type Composer struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	media   MediaToolkit
	retries *backoff.Executor
}

// NewComposer constructs the handler with the default toolkit client.
func NewComposer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Composer {
	polling := remotejob.PollingSeconds(cfg.Services.PollInterval, cfg.Services.PollTimeout)
	return NewComposerWithDependencies(cfg, store, logger, mediakit.NewClient(cfg.Services.MediaKitURL, polling))
}

// NewComposerWithDependencies allows injecting the toolkit (used in tests).
func NewComposerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, media MediaToolkit) *Composer {
	return &Composer{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "composition"),
		media:   media,
		retries: backoff.FromDurations(cfg.Workflow.BackoffBase, cfg.Workflow.BackoffMax, cfg.Workflow.BackoffCeiling),
	}
}

func (c *Composer) Name() queue.Status { return queue.StatusFinalComposition }

// Done is satisfied once the composed file exists.
func (c *Composer) Done(_ context.Context, job *queue.Job) (bool, error) {
	return job.ComposedFile != "" && fileutil.Exists(job.ComposedFile), nil
}

func (c *Composer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	if job.AssembledFile == "" || !fileutil.Exists(job.AssembledFile) {
		return services.Wrap(services.ErrValidation, "final_composition", "validate inputs",
			"assembled file missing; assembly stage did not run", nil)
	}
	if job.AudioPath == "" || !fileutil.Exists(job.AudioPath) {
		return services.Wrap(services.ErrValidation, "final_composition", "validate inputs",
			"narration audio missing", nil)
	}
	subtitlePath := subtitles.OutputPath(job.WorkDir)
	if !fileutil.Exists(subtitlePath) {
		// Compose without burn-in rather than failing; the subtitle stage
		// records its own warning when it produces nothing.
		subtitlePath = ""
	}

	retries := *c.retries
	retries.OnAttempt = stage.RetryObserver(ctx, c.store, job, queue.StatusFinalComposition)

	composedPath := filepath.Join(job.WorkDir, composedFilename)
	err := retries.Execute(ctx, logger, "compose", func(ctx context.Context) error {
		return c.media.Compose(ctx, job.AssembledFile, job.AudioPath, subtitlePath, composedPath)
	})
	if err != nil {
		return err
	}
	if !fileutil.Exists(composedPath) {
		return services.Wrap(services.ErrProcessing, "final_composition", "compose",
			"toolkit reported success but produced no file", nil)
	}

	job.ComposedFile = composedPath
	logger.Info("final composition complete",
		logging.Bool("subtitles_burned", subtitlePath != ""),
		logging.String("path", composedPath),
	)
	return nil
}

func (c *Composer) HealthCheck(ctx context.Context) stage.Health {
	if err := c.media.Healthy(ctx); err != nil {
		return stage.Unhealthy("final_composition", "media toolkit unreachable: "+err.Error())
	}
	return stage.Healthy("final_composition")
}
