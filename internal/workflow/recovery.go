package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clipper/internal/config"
	"clipper/internal/fileutil"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/selection"
	"clipper/internal/services"
)

// RecoveryScanner requeues jobs that a crashed or killed daemon left
// mid-pipeline. A job is considered orphaned when its lease expired and it
// has not been updated since the stale threshold. Recovered jobs resume from
// their checkpoint; jobs whose resume prerequisites are missing on disk are
// failed instead of looping forever.
type RecoveryScanner struct {
	cfg            *config.Config
	store          *queue.Store
	logger         *slog.Logger
	interval       time.Duration
	staleThreshold time.Duration
}

// NewRecoveryScanner constructs a scanner from the workflow configuration.
func NewRecoveryScanner(cfg *config.Config, store *queue.Store, logger *slog.Logger) *RecoveryScanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RecoveryScanner{
		cfg:            cfg,
		store:          store,
		logger:         logging.NewComponentLogger(logger, "recovery-scanner"),
		interval:       time.Duration(cfg.Workflow.RecoveryInterval) * time.Second,
		staleThreshold: time.Duration(cfg.Workflow.StaleThreshold) * time.Second,
	}
}

// Run scans periodically until the context is cancelled.
func (r *RecoveryScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Scan(ctx); err != nil {
				r.logger.Warn("recovery scan failed", logging.Error(err))
			}
		}
	}
}

// Scan finds orphaned jobs and requeues those that can resume. It returns
// the number of jobs requeued.
func (r *RecoveryScanner) Scan(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.staleThreshold)
	jobs, err := r.store.FindStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, job := range jobs {
		jobCtx := services.WithJobID(ctx, job.ID)
		logger := logging.WithContext(jobCtx, r.logger)

		checkpoint, err := r.store.LoadCheckpoint(jobCtx, job.ID)
		if err != nil {
			logger.Warn("failed to load checkpoint for stale job", logging.Error(err))
			continue
		}
		resume, ok := checkpoint.ResumeStage()
		if !ok {
			// Every stage checkpointed; the crash hit between the last
			// stage and the completion record. Requeue so the manager
			// replays the (memoized) stages and finishes the job.
			resume = queue.StatusTrimming
		}

		if missing := r.missingPrerequisite(job, resume, ok); missing != "" {
			failure := services.Wrap(services.ErrRecovery, string(resume), "resume job",
				"missing prerequisite: "+missing, nil)
			details := services.Details(failure)
			job.SetFailed(queue.JobError{
				Kind:    details.Kind,
				Message: details.Message,
			})
			if err := r.store.Update(jobCtx, job); err != nil {
				logger.Error("failed to persist unrecoverable job", logging.Error(err))
				continue
			}
			logger.Warn("stale job unrecoverable",
				logging.String("resume_stage", string(resume)),
				logging.String("missing", missing),
				logging.String(logging.FieldEventType, "job_unrecoverable"),
			)
			continue
		}

		message := fmt.Sprintf("Resuming from %s", StageLabel(resume))
		if err := r.store.RequeueForRecovery(jobCtx, job.ID, StageBaseline(resume), message); err != nil {
			logger.Error("failed to requeue stale job", logging.Error(err))
			continue
		}
		requeued++
		logger.Info("stale job requeued",
			logging.String("resume_stage", string(resume)),
			logging.String(logging.FieldEventType, "job_recovered"),
		)
	}
	return requeued, nil
}

// missingPrerequisite names the first on-disk or job-record prerequisite the
// resume stage needs but cannot find, or "" when the job can resume.
func (r *RecoveryScanner) missingPrerequisite(job *queue.Job, resume queue.Status, partial bool) string {
	if !partial {
		if !fileutil.Exists(job.FinalFile) {
			return "final video file"
		}
		return ""
	}
	switch resume {
	case queue.StatusAnalyzingAudio:
		if !fileutil.Exists(job.AudioPath) {
			return "narration audio file"
		}
	case queue.StatusFetchingCandidates:
		if job.TargetDuration <= 0 {
			return "measured target duration"
		}
		if !fileutil.Exists(job.TranscriptPath) {
			return "transcript file"
		}
	case queue.StatusDownloadingCandidates, queue.StatusSelectingCandidates:
		if !fileutil.Exists(job.ManifestPath) {
			return "candidate manifest"
		}
	case queue.StatusAssembling:
		if !fileutil.Exists(selection.PlanPath(job.WorkDir)) {
			return "selection plan"
		}
	case queue.StatusGeneratingSubtitles:
		if !fileutil.Exists(job.AssembledFile) {
			return "assembled video file"
		}
		if !fileutil.Exists(job.TranscriptPath) {
			return "transcript file"
		}
	case queue.StatusFinalComposition:
		if !fileutil.Exists(job.AssembledFile) {
			return "assembled video file"
		}
		if !fileutil.Exists(job.AudioPath) {
			return "narration audio file"
		}
	case queue.StatusTrimming:
		if !fileutil.Exists(job.ComposedFile) {
			return "composed video file"
		}
		if job.TargetDuration <= 0 {
			return "measured target duration"
		}
	}
	return ""
}
