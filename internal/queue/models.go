package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job. Working statuses double as the
// pipeline stage names; a running job's status is the stage it is executing.
type Status string

const (
	StatusQueued                Status = "queued"
	StatusAnalyzingAudio        Status = "analyzing_audio"
	StatusFetchingCandidates    Status = "fetching_candidates"
	StatusDownloadingCandidates Status = "downloading_candidates"
	StatusSelectingCandidates   Status = "selecting_candidates"
	StatusAssembling            Status = "assembling"
	StatusGeneratingSubtitles   Status = "generating_subtitles"
	StatusFinalComposition      Status = "final_composition"
	StatusTrimming              Status = "trimming"
	StatusCompleted             Status = "completed"
	StatusFailed                Status = "failed"
	StatusCancelled             Status = "cancelled"
)

// StageOrder is the fixed execution order of the pipeline stages.
var StageOrder = []Status{
	StatusAnalyzingAudio,
	StatusFetchingCandidates,
	StatusDownloadingCandidates,
	StatusSelectingCandidates,
	StatusAssembling,
	StatusGeneratingSubtitles,
	StatusFinalComposition,
	StatusTrimming,
}

var allStatuses = append([]Status{StatusQueued}, append(append([]Status{}, StageOrder...), StatusCompleted, StatusFailed, StatusCancelled)...)

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var stageIndex = func() map[Status]int {
	idx := make(map[Status]int, len(StageOrder))
	for i, stage := range StageOrder {
		idx[stage] = i
	}
	return idx
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsStage reports whether a status names a pipeline stage.
func IsStage(status Status) bool {
	_, ok := stageIndex[status]
	return ok
}

// StageIndex returns the position of a stage in the fixed order.
func StageIndex(stage Status) (int, bool) {
	idx, ok := stageIndex[stage]
	return idx, ok
}

// NextStage returns the stage that follows the given one. Passing an empty
// status or StatusQueued yields the first stage. The second return is false
// when the given stage is the last one.
func NextStage(stage Status) (Status, bool) {
	if stage == "" || stage == StatusQueued {
		return StageOrder[0], true
	}
	idx, ok := stageIndex[stage]
	if !ok || idx+1 >= len(StageOrder) {
		return "", false
	}
	return StageOrder[idx+1], true
}

// IsTerminalStatus reports whether a status is terminal.
func IsTerminalStatus(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// StageStatus is the per-stage execution state recorded in StageInfo.
type StageStatus string

const (
	StagePending      StageStatus = "pending"
	StageInProgress   StageStatus = "in_progress"
	StageCompleted    StageStatus = "completed"
	StageFailed       StageStatus = "failed"
	StageWaitingRetry StageStatus = "waiting_retry"
)

// StageInfo captures progress for a single stage of a job. Fields are merged
// explicitly in Job.MergeStageInfo; a zero value never clobbers recorded data.
type StageInfo struct {
	Status          StageStatus `json:"status"`
	Progress        int         `json:"progress"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	Error           string      `json:"error,omitempty"`
	Warning         string      `json:"warning,omitempty"`
	RetryAttempt    int         `json:"retry_attempt,omitempty"`
	LastRetryError  string      `json:"last_retry_error,omitempty"`
	NextRetryAt     *time.Time  `json:"next_retry_at,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// JobError is the structured terminal error persisted on a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Job represents one end-to-end video-assembly request persisted in SQLite.
type Job struct {
	ID              string
	Query           string
	AudioPath       string
	Status          Status
	Stages          map[Status]StageInfo
	AudioDuration   float64
	TargetDuration  float64
	WorkDir         string
	TranscriptPath  string
	ManifestPath    string
	AssembledFile   string
	ComposedFile    string
	FinalFile       string
	ProgressPercent float64
	ProgressMessage string
	Error           *JobError
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	ExpiresAt       time.Time
	LeaseExpiresAt  *time.Time
}

// IsTerminal reports whether the job reached a terminal status.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsProcessing reports whether the job is executing a pipeline stage.
func (j Job) IsProcessing() bool {
	return IsStage(j.Status)
}

// StageState returns the recorded StageInfo for a stage, zero when absent.
func (j Job) StageState(stage Status) StageInfo {
	if j.Stages == nil {
		return StageInfo{Status: StagePending}
	}
	info, ok := j.Stages[stage]
	if !ok {
		return StageInfo{Status: StagePending}
	}
	return info
}

// MergeStageInfo merges the provided update into the stage record using
// field-level rules: zero values leave the stored field untouched, except
// Status and Progress which always win when set.
func (j *Job) MergeStageInfo(stage Status, update StageInfo) {
	if j.Stages == nil {
		j.Stages = make(map[Status]StageInfo, len(StageOrder))
	}
	current := j.Stages[stage]
	if update.Status != "" {
		current.Status = update.Status
	}
	if update.Progress != 0 || update.Status == StageCompleted {
		current.Progress = update.Progress
	}
	if update.Status == StageCompleted {
		current.Progress = 100
	}
	if update.DurationSeconds > 0 {
		current.DurationSeconds = update.DurationSeconds
	}
	if update.Error != "" {
		current.Error = update.Error
	}
	if update.Warning != "" {
		current.Warning = update.Warning
	}
	if update.RetryAttempt > 0 {
		current.RetryAttempt = update.RetryAttempt
	}
	if update.LastRetryError != "" {
		current.LastRetryError = update.LastRetryError
	}
	if update.NextRetryAt != nil {
		current.NextRetryAt = update.NextRetryAt
	}
	if update.Status == StageCompleted || update.Status == StageFailed {
		current.NextRetryAt = nil
	}
	current.UpdatedAt = time.Now().UTC()
	j.Stages[stage] = current
}

// SetProgress updates the job-level progress fields together.
func (j *Job) SetProgress(percent float64, message string) {
	j.ProgressPercent = percent
	j.ProgressMessage = message
}

// SetFailed marks the job failed with the structured error payload.
func (j *Job) SetFailed(jobErr JobError) {
	j.Status = StatusFailed
	j.Error = &jobErr
	j.ProgressMessage = jobErr.Message
	j.LeaseExpiresAt = nil
}

// SetCancelled marks the job cancelled.
func (j *Job) SetCancelled() {
	j.Status = StatusCancelled
	j.ProgressMessage = "Cancelled by user"
	j.LeaseExpiresAt = nil
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Failed     int
	Completed  int
	Cancelled  int
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// Checkpoint records which stages a job has completed, in order.
type Checkpoint struct {
	JobID           string
	CompletedStages []Status
	LastUpdated     time.Time
}

// ResumeStage computes the stage execution should resume from: the successor
// of the last checkpointed stage, or the first stage when nothing completed.
func (c *Checkpoint) ResumeStage() (Status, bool) {
	if c == nil || len(c.CompletedStages) == 0 {
		return StageOrder[0], true
	}
	return NextStage(c.CompletedStages[len(c.CompletedStages)-1])
}

// Contains reports whether a stage is already checkpointed.
func (c *Checkpoint) Contains(stage Status) bool {
	if c == nil {
		return false
	}
	for _, s := range c.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}
