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
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/services/mediakit"
	"clipper/internal/services/remotejob"
	"clipper/internal/stage"
)

// Assembler is the assembling stage handler. It concatenates the planned
// clips and verifies the joined duration against the plan.
type Assembler struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	media   MediaToolkit
	retries *backoff.Executor
}

// NewAssembler constructs the handler with the default toolkit client.
func NewAssembler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Assembler {
	polling := remotejob.PollingSeconds(cfg.Services.PollInterval, cfg.Services.PollTimeout)
	return NewAssemblerWithDependencies(cfg, store, logger, mediakit.NewClient(cfg.Services.MediaKitURL, polling))
}

// NewAssemblerWithDependencies allows injecting the toolkit (used in tests).
func NewAssemblerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, media MediaToolkit) *Assembler {
	return &Assembler{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "assembly"),
		media:   media,
		retries: backoff.FromDurations(cfg.Workflow.BackoffBase, cfg.Workflow.BackoffMax, cfg.Workflow.BackoffCeiling),
	}
}

func (a *Assembler) Name() queue.Status { return queue.StatusAssembling }

// Done is satisfied once the assembled file exists.
func (a *Assembler) Done(_ context.Context, job *queue.Job) (bool, error) {
	return job.AssembledFile != "" && fileutil.Exists(job.AssembledFile), nil
}

func (a *Assembler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, a.logger)
	plan, err := selection.LoadPlan(selection.PlanPath(job.WorkDir))
	if err != nil {
		return services.Wrap(services.ErrValidation, "assembling", "validate inputs",
			"selection plan missing; selection stage did not run", err)
	}
	parts := make([]string, 0, len(plan.Clips))
	for _, clip := range plan.Clips {
		if !fileutil.Exists(clip.Path) {
			return services.Wrap(services.ErrValidation, "assembling", "validate inputs",
				fmt.Sprintf("planned clip missing from pool: %s", clip.Path), nil)
		}
		parts = append(parts, clip.Path)
	}

	retries := *a.retries
	retries.OnAttempt = stage.RetryObserver(ctx, a.store, job, queue.StatusAssembling)

	assembledPath := filepath.Join(job.WorkDir, assembledFilename)
	err = retries.Execute(ctx, logger, "concat", func(ctx context.Context) error {
		return a.media.Concat(ctx, parts, assembledPath)
	})
	if err != nil {
		return err
	}

	var probed mediakit.ProbeResult
	err = retries.Execute(ctx, logger, "probe assembled", func(ctx context.Context) error {
		var probeErr error
		probed, probeErr = a.media.Probe(ctx, assembledPath)
		return probeErr
	})
	if err != nil {
		return err
	}
	if !withinTolerance(probed.Duration, plan.TotalDuration, a.cfg.Pipeline.DurationTolerance) {
		return services.Wrap(services.ErrProcessing, "assembling", "verify duration",
			fmt.Sprintf("assembled %.2fs differs from planned %.2fs beyond %.1fs tolerance",
				probed.Duration, plan.TotalDuration, a.cfg.Pipeline.DurationTolerance), nil)
	}

	job.AssembledFile = assembledPath
	job.MergeStageInfo(queue.StatusAssembling, queue.StageInfo{DurationSeconds: probed.Duration})
	logger.Info("clips assembled",
		logging.Int("clips", len(parts)),
		logging.Float64("duration", probed.Duration),
	)
	return nil
}

func (a *Assembler) HealthCheck(ctx context.Context) stage.Health {
	if err := a.media.Healthy(ctx); err != nil {
		return stage.Unhealthy("assembling", "media toolkit unreachable: "+err.Error())
	}
	return stage.Healthy("assembling")
}
