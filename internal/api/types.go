package api

import (
	"time"

	"clipper/internal/queue"
)

// JobSummary is the list-view representation of a job.
type JobSummary struct {
	ID              string     `json:"id"`
	Query           string     `json:"query"`
	Status          string     `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	Error           *JobError  `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// JobError mirrors the structured terminal error persisted on a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// StageView is the per-stage execution record exposed on job detail.
type StageView struct {
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Error           string     `json:"error,omitempty"`
	Warning         string     `json:"warning,omitempty"`
	RetryAttempt    int        `json:"retry_attempt,omitempty"`
	LastRetryError  string     `json:"last_retry_error,omitempty"`
	NextRetryAt     *time.Time `json:"next_retry_at,omitempty"`
}

// JobDetail is the full representation of a job.
type JobDetail struct {
	JobSummary
	AudioPath      string      `json:"audio_path"`
	AudioDuration  float64     `json:"audio_duration,omitempty"`
	TargetDuration float64     `json:"target_duration,omitempty"`
	WorkDir        string      `json:"work_dir,omitempty"`
	TranscriptPath string      `json:"transcript_path,omitempty"`
	ManifestPath   string      `json:"manifest_path,omitempty"`
	AssembledFile  string      `json:"assembled_file,omitempty"`
	ComposedFile   string      `json:"composed_file,omitempty"`
	FinalFile      string      `json:"final_file,omitempty"`
	ExpiresAt      time.Time   `json:"expires_at"`
	Stages         []StageView `json:"stages,omitempty"`
}

// SubmitRequest creates a new job.
type SubmitRequest struct {
	Query     string `json:"query"`
	AudioPath string `json:"audio_path"`
}

// RetryRequest requeues failed jobs; empty IDs retries all of them.
type RetryRequest struct {
	IDs []string `json:"ids,omitempty"`
}

// CountResponse reports how many rows an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// JobListResponse wraps job summaries.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// StageHealth reports one stage handler's readiness.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// QueueHealth aggregates job counts per lifecycle state.
type QueueHealth struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

// LedgerStats reports permanent clip decisions.
type LedgerStats struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	JobDBPath    string        `json:"job_db_path"`
	LockFilePath string        `json:"lock_file_path"`
	Queue        QueueHealth   `json:"queue"`
	Ledger       LedgerStats   `json:"ledger"`
	Stages       []StageHealth `json:"stages,omitempty"`
}

// DatabaseHealth is the /api/health payload's database section.
type DatabaseHealth struct {
	Path           string `json:"path"`
	Exists         bool   `json:"exists"`
	Readable       bool   `json:"readable"`
	TableExists    bool   `json:"table_exists"`
	IntegrityCheck bool   `json:"integrity_check"`
	TotalJobs      int    `json:"total_jobs"`
	Error          string `json:"error,omitempty"`
}

// HealthResponse is the /api/health payload.
type HealthResponse struct {
	Queue    QueueHealth    `json:"queue"`
	Database DatabaseHealth `json:"database"`
}

// FromJobSummary converts a queue job into its list-view representation.
func FromJobSummary(job *queue.Job) JobSummary {
	summary := JobSummary{
		ID:              job.ID,
		Query:           job.Query,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		CompletedAt:     job.CompletedAt,
	}
	if job.Error != nil {
		summary.Error = &JobError{
			Kind:    job.Error.Kind,
			Message: job.Error.Message,
			Details: job.Error.Details,
		}
	}
	return summary
}

// FromJob converts a queue job into its detail representation, with stages
// listed in pipeline order.
func FromJob(job *queue.Job) JobDetail {
	detail := JobDetail{
		JobSummary:     FromJobSummary(job),
		AudioPath:      job.AudioPath,
		AudioDuration:  job.AudioDuration,
		TargetDuration: job.TargetDuration,
		WorkDir:        job.WorkDir,
		TranscriptPath: job.TranscriptPath,
		ManifestPath:   job.ManifestPath,
		AssembledFile:  job.AssembledFile,
		ComposedFile:   job.ComposedFile,
		FinalFile:      job.FinalFile,
		ExpiresAt:      job.ExpiresAt,
	}
	for _, name := range queue.StageOrder {
		info, ok := job.Stages[name]
		if !ok {
			continue
		}
		detail.Stages = append(detail.Stages, StageView{
			Name:            string(name),
			Status:          string(info.Status),
			Progress:        info.Progress,
			DurationSeconds: info.DurationSeconds,
			Error:           info.Error,
			Warning:         info.Warning,
			RetryAttempt:    info.RetryAttempt,
			LastRetryError:  info.LastRetryError,
			NextRetryAt:     info.NextRetryAt,
		})
	}
	return detail
}

// FromQueueHealth converts the store's aggregate counts.
func FromQueueHealth(summary queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:      summary.Total,
		Queued:     summary.Queued,
		Processing: summary.Processing,
		Failed:     summary.Failed,
		Completed:  summary.Completed,
		Cancelled:  summary.Cancelled,
	}
}

// FromDatabaseHealth converts the store's database diagnostics.
func FromDatabaseHealth(health queue.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		Path:           health.DBPath,
		Exists:         health.DatabaseExists,
		Readable:       health.DatabaseReadable,
		TableExists:    health.TableExists,
		IntegrityCheck: health.IntegrityCheck,
		TotalJobs:      health.TotalJobs,
		Error:          health.Error,
	}
}
