package stage

import (
	"context"
	"time"

	"clipper/internal/queue"
)

// RetryObserver returns a backoff observer that surfaces retry liveness on
// the job row, so a client polling the store during a long retry loop sees
// the attempt count and the next retry time instead of a frozen stage.
func RetryObserver(ctx context.Context, store *queue.Store, job *queue.Job, stageName queue.Status) func(attempt int, delay time.Duration, err error) {
	return func(attempt int, delay time.Duration, err error) {
		message := ""
		if err != nil {
			message = err.Error()
		}
		nextRetry := time.Now().Add(delay).UTC()
		job.MergeStageInfo(stageName, queue.StageInfo{
			Status:         queue.StageWaitingRetry,
			RetryAttempt:   attempt,
			LastRetryError: message,
			NextRetryAt:    &nextRetry,
		})
		if store != nil {
			// Liveness metadata only; losing one update is harmless.
			_ = store.Update(ctx, job)
		}
	}
}
