package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, query, audio_path, status, stages_json, audio_duration, target_duration, work_dir, transcript_path, manifest_path, assembled_file, composed_file, final_file, progress_percent, progress_message, error_json, cancel_requested, created_at, updated_at, completed_at, expires_at, lease_expires_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		query           sql.NullString
		audioPath       sql.NullString
		statusStr       string
		stagesJSON      sql.NullString
		audioDuration   sql.NullFloat64
		targetDuration  sql.NullFloat64
		workDir         sql.NullString
		transcriptPath  sql.NullString
		manifestPath    sql.NullString
		assembledFile   sql.NullString
		composedFile    sql.NullString
		finalFile       sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorJSON       sql.NullString
		cancelRequested sql.NullInt64
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		completedRaw    sql.NullString
		expiresRaw      sql.NullString
		leaseRaw        sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&query,
		&audioPath,
		&statusStr,
		&stagesJSON,
		&audioDuration,
		&targetDuration,
		&workDir,
		&transcriptPath,
		&manifestPath,
		&assembledFile,
		&composedFile,
		&finalFile,
		&progressPercent,
		&progressMessage,
		&errorJSON,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
		&expiresRaw,
		&leaseRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Query:           query.String,
		AudioPath:       audioPath.String,
		Status:          Status(statusStr),
		AudioDuration:   audioDuration.Float64,
		TargetDuration:  targetDuration.Float64,
		WorkDir:         workDir.String,
		TranscriptPath:  transcriptPath.String,
		ManifestPath:    manifestPath.String,
		AssembledFile:   assembledFile.String,
		ComposedFile:    composedFile.String,
		FinalFile:       finalFile.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if cancelRequested.Valid {
		job.CancelRequested = cancelRequested.Int64 != 0
	}

	stages, err := unmarshalStages(stagesJSON.String)
	if err != nil {
		return nil, fmt.Errorf("decode stages for job %s: %w", id, err)
	}
	job.Stages = stages

	jobErr, err := unmarshalJobError(errorJSON.String)
	if err != nil {
		return nil, fmt.Errorf("decode error for job %s: %w", id, err)
	}
	job.Error = jobErr

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	if expires, err := parseTimeString(expiresRaw.String); err == nil {
		job.ExpiresAt = expires
	}
	if leaseRaw.Valid {
		if lease, err := parseTimeString(leaseRaw.String); err == nil {
			job.LeaseExpiresAt = &lease
		}
	}
	return job, nil
}

func marshalStages(stages map[Status]StageInfo) (string, error) {
	if len(stages) == 0 {
		return "", nil
	}
	encoded := make(map[string]StageInfo, len(stages))
	for stage, info := range stages {
		encoded[string(stage)] = info
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return "", fmt.Errorf("marshal stages: %w", err)
	}
	return string(data), nil
}

func unmarshalStages(value string) (map[Status]StageInfo, error) {
	if value == "" {
		return nil, nil
	}
	var decoded map[string]StageInfo
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return nil, err
	}
	stages := make(map[Status]StageInfo, len(decoded))
	for name, info := range decoded {
		stages[Status(name)] = info
	}
	return stages, nil
}

func marshalJobError(jobErr *JobError) (string, error) {
	if jobErr == nil {
		return "", nil
	}
	data, err := json.Marshal(jobErr)
	if err != nil {
		return "", fmt.Errorf("marshal job error: %w", err)
	}
	return string(data), nil
}

func unmarshalJobError(value string) (*JobError, error) {
	if value == "" {
		return nil, nil
	}
	var decoded JobError
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
