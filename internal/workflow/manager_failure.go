package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName queue.Status, job *queue.Job, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)

	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}

	job.SetFailed(queue.JobError{
		Kind:    details.Kind,
		Message: message,
		Details: details.Details,
	})
	if queue.IsStage(stageName) {
		job.MergeStageInfo(stageName, queue.StageInfo{
			Status: queue.StageFailed,
			Error:  message,
		})
	}

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String("error_kind", details.Kind),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	if err := m.notifier.NotifyJobFailed(ctx, job.ID, job.Query, message); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}
