package candidates

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"clipper/internal/backoff"
	"clipper/internal/config"
	"clipper/internal/fileutil"
	"clipper/internal/ledger"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/services/remotejob"
	"clipper/internal/services/shorts"
	"clipper/internal/stage"
)

const manifestFilename = "candidates.json"

// ShortsProvider searches for candidate clips.
type ShortsProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]shorts.Candidate, error)
	Healthy(ctx context.Context) error
}

// RejectionChecker is the ledger slice the fetch stage consults.
type RejectionChecker interface {
	IsRejected(ctx context.Context, clipID string) (bool, error)
}

// Fetcher is the fetching_candidates stage handler. It turns the job query
// into a candidate manifest, dropping clips the ledger already rejected.
type Fetcher struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	shorts  ShortsProvider
	ledger  RejectionChecker
	retries *backoff.Executor
}

// NewFetcher constructs the handler with its default shorts client.
func NewFetcher(cfg *config.Config, store *queue.Store, logger *slog.Logger, decisions *ledger.Store) *Fetcher {
	polling := remotejob.PollingSeconds(cfg.Services.PollInterval, cfg.Services.PollTimeout)
	return NewFetcherWithDependencies(cfg, store, logger,
		shorts.NewClient(cfg.Services.ShortsURL, polling), decisions)
}

// NewFetcherWithDependencies allows injecting collaborators (used in tests).
func NewFetcherWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, provider ShortsProvider, decisions RejectionChecker) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "candidate-fetch"),
		shorts:  provider,
		ledger:  decisions,
		retries: backoff.FromDurations(cfg.Workflow.BackoffBase, cfg.Workflow.BackoffMax, cfg.Workflow.BackoffCeiling),
	}
}

func (f *Fetcher) Name() queue.Status { return queue.StatusFetchingCandidates }

// Done is satisfied once the manifest file exists with at least one clip.
func (f *Fetcher) Done(_ context.Context, job *queue.Job) (bool, error) {
	if job.ManifestPath == "" || !fileutil.Exists(job.ManifestPath) {
		return false, nil
	}
	manifest, err := LoadManifest(job.ManifestPath)
	if err != nil {
		return false, nil
	}
	return len(manifest.Clips) > 0, nil
}

func (f *Fetcher) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, f.logger)
	if job.Query == "" {
		return services.Wrap(services.ErrValidation, "fetching_candidates", "validate inputs",
			"job query is empty", nil)
	}

	retries := *f.retries
	retries.OnAttempt = stage.RetryObserver(ctx, f.store, job, queue.StatusFetchingCandidates)

	var found []shorts.Candidate
	err := retries.Execute(ctx, logger, "search", func(ctx context.Context) error {
		var searchErr error
		found, searchErr = f.shorts.Search(ctx, job.Query, f.cfg.Pipeline.MaxCandidates)
		return searchErr
	})
	if err != nil {
		return err
	}

	manifest := &Manifest{
		JobID:     job.ID,
		Query:     job.Query,
		CreatedAt: time.Now().UTC(),
	}
	skipped := 0
	for _, candidate := range found {
		rejected, checkErr := f.ledger.IsRejected(ctx, candidate.ClipID)
		if checkErr != nil {
			return services.Wrap(services.ErrResource, "fetching_candidates", "consult ledger",
				"check rejection history", checkErr)
		}
		if rejected {
			skipped++
			continue
		}
		manifest.Clips = append(manifest.Clips, Clip{
			ClipID:   candidate.ClipID,
			Title:    candidate.Title,
			Duration: candidate.Duration,
			State:    ClipPending,
		})
	}
	if len(manifest.Clips) == 0 {
		return services.Wrap(services.ErrProcessing, "fetching_candidates", "search",
			"no usable candidates for query", nil)
	}

	manifestPath := filepath.Join(job.WorkDir, manifestFilename)
	if err := manifest.Save(manifestPath); err != nil {
		return services.Wrap(services.ErrResource, "fetching_candidates", "save manifest",
			"write candidate manifest", err)
	}
	job.ManifestPath = manifestPath
	logger.Info("candidate manifest written",
		logging.Int("candidates", len(manifest.Clips)),
		logging.Int("blacklisted", skipped),
	)
	return nil
}

func (f *Fetcher) HealthCheck(ctx context.Context) stage.Health {
	if err := f.shorts.Healthy(ctx); err != nil {
		return stage.Unhealthy("fetching_candidates", "shorts provider unreachable: "+err.Error())
	}
	return stage.Healthy("fetching_candidates")
}
