package candidates

import (
	"context"
	"log/slog"

	"clipper/internal/backoff"
	"clipper/internal/config"
	"clipper/internal/fileutil"
	"clipper/internal/ledger"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/services/detector"
	"clipper/internal/services/downloader"
	"clipper/internal/services/mediakit"
	"clipper/internal/services/remotejob"
	"clipper/internal/stage"
	"clipper/internal/validation"
)

// ClipDownloader fetches raw candidate media.
type ClipDownloader interface {
	Download(ctx context.Context, clipID, destDir string) (downloader.Result, error)
	Healthy(ctx context.Context) error
}

// Validator runs a downloaded clip through the content pipeline.
type Validator interface {
	Run(ctx context.Context, jobID, clipID, rawPath string) (validation.Outcome, error)
}

// PoolLedger is the ledger slice the download stage consults.
type PoolLedger interface {
	IsRejected(ctx context.Context, clipID string) (bool, error)
	IsApproved(ctx context.Context, clipID string) (bool, error)
}

// Downloader is the downloading_candidates stage handler. Each manifest clip
// either gets reused from the approved pool, downloaded and validated, or
// settled as rejected.
type Downloader struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	client    ClipDownloader
	pipeline  Validator
	decisions PoolLedger
	pool      validation.Pool
	retries   *backoff.Executor
}

// NewDownloader constructs the handler with its default collaborators.
func NewDownloader(cfg *config.Config, store *queue.Store, logger *slog.Logger, decisions *ledger.Store) *Downloader {
	polling := remotejob.PollingSeconds(cfg.Services.PollInterval, cfg.Services.PollTimeout)
	pool := validation.NewPool(cfg.Paths.PoolDir)
	pipeline := validation.NewPipeline(pool,
		mediakit.NewClient(cfg.Services.MediaKitURL, polling),
		detector.NewClient(cfg.Services.DetectorURL, polling),
		decisions,
		cfg.Pipeline.TargetAspect,
		logger,
	)
	return NewDownloaderWithDependencies(cfg, store, logger,
		downloader.NewClient(cfg.Services.DownloaderURL, polling), pipeline, decisions, pool)
}

// NewDownloaderWithDependencies allows injecting collaborators (used in tests).
func NewDownloaderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client ClipDownloader, pipeline Validator, decisions PoolLedger, pool validation.Pool) *Downloader {
	return &Downloader{
		cfg:       cfg,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "candidate-download"),
		client:    client,
		pipeline:  pipeline,
		decisions: decisions,
		pool:      pool,
		retries:   backoff.FromDurations(cfg.Workflow.BackoffBase, cfg.Workflow.BackoffMax, cfg.Workflow.BackoffCeiling),
	}
}

func (d *Downloader) Name() queue.Status { return queue.StatusDownloadingCandidates }

// Done is satisfied when every manifest clip reached a terminal state and at
// least one is usable.
func (d *Downloader) Done(_ context.Context, job *queue.Job) (bool, error) {
	if job.ManifestPath == "" || !fileutil.Exists(job.ManifestPath) {
		return false, nil
	}
	manifest, err := LoadManifest(job.ManifestPath)
	if err != nil {
		return false, nil
	}
	return manifest.Settled() && len(manifest.Usable()) > 0, nil
}

func (d *Downloader) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	if job.ManifestPath == "" || !fileutil.Exists(job.ManifestPath) {
		return services.Wrap(services.ErrValidation, "downloading_candidates", "validate inputs",
			"candidate manifest missing; fetch stage did not run", nil)
	}
	manifest, err := LoadManifest(job.ManifestPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "downloading_candidates", "load manifest",
			"candidate manifest unreadable", err)
	}

	retries := *d.retries
	retries.OnAttempt = stage.RetryObserver(ctx, d.store, job, queue.StatusDownloadingCandidates)

	for i := range manifest.Clips {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrMicroservice, "downloading_candidates", "download",
				"stage interrupted", ctx.Err())
		}
		clip := &manifest.Clips[i]
		if clip.State != ClipPending && clip.State != "" {
			continue
		}
		if err := d.settleClip(ctx, logger, &retries, job, clip); err != nil {
			return err
		}
		// Persist after every clip so a crash resumes mid-list.
		if err := manifest.Save(job.ManifestPath); err != nil {
			return services.Wrap(services.ErrResource, "downloading_candidates", "save manifest",
				"update candidate manifest", err)
		}
	}

	usable := manifest.Usable()
	if len(usable) == 0 {
		return services.Wrap(services.ErrProcessing, "downloading_candidates", "validate pool",
			"no candidate survived validation", nil)
	}
	logger.Info("candidates settled",
		logging.Int("usable", len(usable)),
		logging.Int("total", len(manifest.Clips)),
	)
	return nil
}

func (d *Downloader) settleClip(ctx context.Context, logger *slog.Logger, retries *backoff.Executor, job *queue.Job, clip *Clip) error {
	// The ledger may have changed since the fetch stage ran.
	rejected, err := d.decisions.IsRejected(ctx, clip.ClipID)
	if err != nil {
		return services.Wrap(services.ErrResource, "downloading_candidates", "consult ledger",
			"check rejection history", err)
	}
	if rejected {
		clip.State = ClipRejected
		clip.Reason = "previously rejected"
		return nil
	}

	approved, err := d.decisions.IsApproved(ctx, clip.ClipID)
	if err != nil {
		return services.Wrap(services.ErrResource, "downloading_candidates", "consult ledger",
			"check approval history", err)
	}
	approvedPath := d.pool.ApprovedPath(clip.ClipID)
	if approved && fileutil.Exists(approvedPath) {
		duration := clip.Duration
		clip.State = ClipReused
		clip.LocalPath = approvedPath
		clip.MeasuredDuration = duration
		logger.Info("reusing approved clip", logging.String(logging.FieldClipID, clip.ClipID))
		return nil
	}

	var downloaded downloader.Result
	err = retries.Execute(ctx, logger, "download", func(ctx context.Context) error {
		var dlErr error
		downloaded, dlErr = d.client.Download(ctx, clip.ClipID, d.pool.RawDir())
		return dlErr
	})
	if err != nil {
		return err
	}

	var outcome validation.Outcome
	err = retries.Execute(ctx, logger, "validate clip", func(ctx context.Context) error {
		var runErr error
		outcome, runErr = d.pipeline.Run(ctx, job.ID, clip.ClipID, downloaded.Path)
		return runErr
	})
	if err != nil {
		return err
	}
	if outcome.Approved {
		clip.State = ClipApproved
		clip.LocalPath = outcome.ApprovedPath
		clip.MeasuredDuration = downloaded.Duration
	} else {
		clip.State = ClipRejected
		clip.Reason = outcome.Reason
	}
	return nil
}

func (d *Downloader) HealthCheck(ctx context.Context) stage.Health {
	if err := d.client.Healthy(ctx); err != nil {
		return stage.Unhealthy("downloading_candidates", "downloader unreachable: "+err.Error())
	}
	return stage.Healthy("downloading_candidates")
}
