package queue

import (
	"context"
	"fmt"
	"time"
)

// RenewLease extends the lease on an in-flight job. Called by the heartbeat
// loop while a worker executes stages for the job.
func (s *Store) RenewLease(ctx context.Context, id string, ttl time.Duration) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET lease_expires_at = ?, updated_at = ? WHERE id = ?`,
		now.Add(ttl).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	return nil
}

// RequeueForRecovery resets an orphaned job back to queued so a worker can
// resume it from its checkpoint. Progress is set to the resume stage's
// baseline percentage by the caller.
func (s *Store) RequeueForRecovery(ctx context.Context, id string, percent float64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_percent = ?, progress_message = ?,
             lease_expires_at = NULL, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		StatusQueued,
		percent,
		message,
		now,
		id,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	); err != nil {
		return fmt.Errorf("requeue job for recovery: %w", err)
	}
	return nil
}

// RequestCancel flags a job for cancellation. Queued jobs are cancelled
// immediately; running jobs stop before their next stage. Returns false when
// the job is missing or already terminal.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil || job.IsTerminal() {
		return false, nil
	}
	if job.Status == StatusQueued {
		job.SetCancelled()
		job.CancelRequested = true
		if err := s.Update(ctx, job); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	return true, nil
}

// RetryFailed moves failed jobs back to queued for reprocessing. With no ids
// every failed job is retried. Returns the number of jobs requeued.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
             SET status = ?, progress_percent = 0, progress_message = 'Retry requested',
                 error_json = NULL, cancel_requested = 0, updated_at = ?
             WHERE status = ?`,
			StatusQueued,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusQueued, now, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_percent = 0, progress_message = 'Retry requested',
             error_json = NULL, cancel_requested = 0, updated_at = ?
         WHERE status = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}
