package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	jobCtx := services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(jobCtx, m.logger)

	if job.WorkDir == "" {
		job.WorkDir = filepath.Join(m.cfg.Paths.WorkDir, job.ID)
	}
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		wrapped := services.Wrap(services.ErrResource, "", "create workdir", job.WorkDir, err)
		m.handleStageFailure(jobCtx, queue.StatusQueued, job, wrapped)
		return nil
	}

	checkpoint, err := m.store.LoadCheckpoint(jobCtx, job.ID)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to load checkpoint", logging.Error(err))
		return err
	}
	if checkpoint != nil && len(checkpoint.CompletedStages) > 0 {
		if resume, ok := checkpoint.ResumeStage(); ok {
			logger.Info("resuming job from checkpoint",
				logging.String("resume_stage", string(resume)),
				logging.Int("completed_stages", len(checkpoint.CompletedStages)),
				logging.String(logging.FieldEventType, "job_resume"),
			)
		}
	}

	jobStart := time.Now()
	for _, stageName := range queue.StageOrder {
		if cancelled, err := m.cancelIfRequested(jobCtx, job); err != nil {
			return err
		} else if cancelled {
			return nil
		}
		if checkpoint.Contains(stageName) {
			continue
		}
		if err := m.runStage(jobCtx, job, stageName); err != nil {
			return err
		}
	}

	return m.completeJob(jobCtx, job, jobStart)
}

// cancelIfRequested re-reads the cancel flag so a cancellation issued while a
// stage ran takes effect before the next stage starts.
func (m *Manager) cancelIfRequested(ctx context.Context, job *queue.Job) (bool, error) {
	refreshed, err := m.store.GetByID(ctx, job.ID)
	if err != nil {
		m.setLastError(err)
		return false, err
	}
	if refreshed != nil {
		job.CancelRequested = refreshed.CancelRequested
	}
	if !job.CancelRequested {
		return false, nil
	}

	logger := logging.WithContext(ctx, m.logger)
	job.SetCancelled()
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist cancellation", logging.Error(err))
		m.setLastError(err)
		return false, err
	}
	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	return true, nil
}

func (m *Manager) runStage(ctx context.Context, job *queue.Job, stageName queue.Status) error {
	handler, ok := m.handlers[stageName]
	if !ok {
		err := fmt.Errorf("no handler registered for stage %s", stageName)
		m.handleStageFailure(ctx, stageName, job, err)
		m.setLastError(err)
		return err
	}

	stageCtx := services.WithRequestID(services.WithStage(ctx, string(stageName)), uuid.NewString())
	stageLogger := logging.WithContext(stageCtx, m.logger)

	if err := m.transitionToProcessing(stageCtx, job, stageName); err != nil {
		stageLogger.Error("failed to transition job to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	done, err := handler.Done(stageCtx, job)
	if err != nil {
		m.handleStageFailure(stageCtx, stageName, job, err)
		m.setLastError(err)
		return err
	}
	if done {
		stageLogger.Info("stage output already present, skipping",
			logging.String(logging.FieldEventType, "stage_skipped"),
		)
		return m.recordStageComplete(stageCtx, stageLogger, job, stageName, 0)
	}

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Float64("progress", job.ProgressPercent),
	)

	execErr := m.executeWithHeartbeat(stageCtx, handler, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(stageCtx, stageName, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	return m.recordStageComplete(stageCtx, stageLogger, job, stageName, time.Since(stageStart))
}

func (m *Manager) recordStageComplete(ctx context.Context, logger *slog.Logger, job *queue.Job, stageName queue.Status, elapsed time.Duration) error {
	job.MergeStageInfo(stageName, queue.StageInfo{
		Status:          queue.StageCompleted,
		DurationSeconds: elapsed.Seconds(),
	})
	// The job row must carry the stage's outputs before the stage is
	// checkpointed; a crash between the two writes then just re-runs the
	// stage, whose Done memoization reuses the artifact. The reverse order
	// would leave recovery looking for prerequisites that were never saved.
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		logger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	if err := m.store.SaveCheckpoint(ctx, job.ID, stageName); err != nil {
		wrapped := fmt.Errorf("save checkpoint: %w", err)
		logger.Error("failed to save stage checkpoint", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (m *Manager) completeJob(ctx context.Context, job *queue.Job, jobStart time.Time) error {
	logger := logging.WithContext(ctx, m.logger)
	now := time.Now().UTC()
	job.Status = queue.StatusCompleted
	job.CompletedAt = &now
	job.LeaseExpiresAt = nil
	job.SetProgress(StageBaseline(queue.StatusCompleted), StageLabel(queue.StatusCompleted))
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist job completion: %w", err)
		logger.Error("failed to persist job completion", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	if err := m.store.DeleteCheckpoint(ctx, job.ID); err != nil {
		logger.Warn("failed to delete checkpoint for completed job", logging.Error(err))
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("final_file", job.FinalFile),
		logging.Duration("job_duration", time.Since(jobStart)),
	)
	if err := m.notifier.NotifyJobCompleted(ctx, job.ID, job.Query, job.FinalFile, time.Since(jobStart)); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
	return nil
}

func (m *Manager) transitionToProcessing(ctx context.Context, job *queue.Job, stageName queue.Status) error {
	job.Status = stageName
	job.SetProgress(StageBaseline(stageName), StageLabel(stageName))
	job.Error = nil
	if m.heartbeatTimeout > 0 {
		lease := time.Now().UTC().Add(m.heartbeatTimeout)
		job.LeaseExpiresAt = &lease
	}
	job.MergeStageInfo(stageName, queue.StageInfo{Status: queue.StageInProgress})
	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	if m.heartbeatInterval <= 0 {
		return handler.Execute(ctx, job)
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.renewLeaseLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) renewLeaseLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.RenewLease(ctx, jobID, m.heartbeatTimeout); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Info("daemon shutting down, lease renewal cancelled")
				} else {
					logger.Warn("lease renewal failed", logging.Error(err))
				}
			}
		}
	}
}
