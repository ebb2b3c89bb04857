package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clipper/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db            *sql.DB
	path          string
	jobTTL        time.Duration
	checkpointTTL time.Duration
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:            db,
		path:          dbPath,
		jobTTL:        time.Duration(cfg.Workflow.JobTTLHours) * time.Hour,
		checkpointTTL: time.Duration(cfg.Workflow.CheckpointTTLHours) * time.Hour,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// NewJob inserts a queued job for the given audio track and search query.
func (s *Store) NewJob(ctx context.Context, query, audioPath string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, query, audio_path, status, created_at, updated_at, expires_at,
            progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(query),
		nullableString(audioPath),
		StatusQueued,
		timestamp,
		timestamp,
		now.Add(s.jobTTL).Format(time.RFC3339Nano),
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
// Update persists every mutable job field. The cancel_requested flag is
// latched: once set in the database a stale in-memory job cannot clear it,
// only RetryFailed resets it.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	stagesJSON, err := marshalStages(job.Stages)
	if err != nil {
		return err
	}
	errorJSON, err := marshalJobError(job.Error)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET query = ?, audio_path = ?, status = ?, stages_json = ?,
             audio_duration = ?, target_duration = ?, work_dir = ?,
             transcript_path = ?, manifest_path = ?, assembled_file = ?,
             composed_file = ?, final_file = ?, progress_percent = ?,
             progress_message = ?, error_json = ?,
             cancel_requested = CASE WHEN cancel_requested = 1 THEN 1 ELSE ? END,
             updated_at = ?, completed_at = ?, expires_at = ?, lease_expires_at = ?
         WHERE id = ?`,
		nullableString(job.Query),
		nullableString(job.AudioPath),
		job.Status,
		nullableString(stagesJSON),
		job.AudioDuration,
		job.TargetDuration,
		nullableString(job.WorkDir),
		nullableString(job.TranscriptPath),
		nullableString(job.ManifestPath),
		nullableString(job.AssembledFile),
		nullableString(job.ComposedFile),
		nullableString(job.FinalFile),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(errorJSON),
		boolToInt(job.CancelRequested),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.CompletedAt),
		job.ExpiresAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.LeaseExpiresAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Delete removes a job and its checkpoint. Returns true when a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	if err := s.DeleteCheckpoint(ctx, id); err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns jobs filtered by status set (or all jobs when none given),
// oldest first. A non-positive limit returns everything.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextQueued claims the oldest queued job by moving it into its resume stage
// placeholder state: the caller transitions it further. Returns nil when the
// queue is empty.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// FindStale returns non-terminal, mid-pipeline jobs whose last update is older
// than the cutoff and whose lease has expired. Queued jobs are excluded; they
// are picked up by regular polling. Terminal jobs are never returned.
func (s *Store) FindStale(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	placeholders := makePlaceholders(len(StageOrder))
	args := make([]any, 0, len(StageOrder)+2)
	for _, stage := range StageOrder {
		args = append(args, stage)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano), now)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status IN (`+placeholders+`)
           AND updated_at < ?
           AND (lease_expires_at IS NULL OR lease_expires_at < ?)
         ORDER BY updated_at`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("find stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
