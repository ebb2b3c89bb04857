package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveCheckpoint appends a completed stage to the job's checkpoint. The write
// is idempotent: recording an already-checkpointed stage is a no-op.
func (s *Store) SaveCheckpoint(ctx context.Context, jobID string, stage Status) error {
	checkpoint, err := s.LoadCheckpoint(ctx, jobID)
	if err != nil {
		return err
	}
	if checkpoint != nil && checkpoint.Contains(stage) {
		return nil
	}

	stages := []Status{stage}
	if checkpoint != nil {
		stages = append(checkpoint.CompletedStages, stage)
	}
	data, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("marshal checkpoint stages: %w", err)
	}

	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO job_checkpoints (job_id, stages_json, last_updated, expires_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
             stages_json = excluded.stages_json,
             last_updated = excluded.last_updated,
             expires_at = excluded.expires_at`,
		jobID,
		string(data),
		now.Format(time.RFC3339Nano),
		now.Add(s.checkpointTTL).Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the checkpoint for a job, nil when none exists.
func (s *Store) LoadCheckpoint(ctx context.Context, jobID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT stages_json, last_updated FROM job_checkpoints WHERE job_id = ?`,
		jobID,
	)
	var (
		stagesJSON string
		updatedRaw string
	)
	if err := row.Scan(&stagesJSON, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var stages []Status
	if err := json.Unmarshal([]byte(stagesJSON), &stages); err != nil {
		return nil, fmt.Errorf("decode checkpoint stages: %w", err)
	}
	checkpoint := &Checkpoint{JobID: jobID, CompletedStages: stages}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		checkpoint.LastUpdated = updated
	}
	return checkpoint, nil
}

// DeleteCheckpoint removes a job's checkpoint. Called on job success and
// when the job record is deleted.
func (s *Store) DeleteCheckpoint(ctx context.Context, jobID string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`DELETE FROM job_checkpoints WHERE job_id = ?`,
		jobID,
	); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
