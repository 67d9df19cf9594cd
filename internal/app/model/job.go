package model

import (
	"time"
)

// JobStatus is the terminal outcome stored with a job record.
type JobStatus string

const (
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// JobRecord is the persisted trace of one finished transcription job.
// Rejected jobs never produce a record; failed ones do, with the
// transcript fields left null and ErrorReason set.
type JobRecord struct {
	ID                 int64     `json:"id" db:"id"`
	UserID             int64     `json:"user_id" db:"user_id"`
	DurationSeconds    float64   `json:"duration_seconds" db:"duration_seconds"`
	TranscriptionChars *int64    `json:"transcription_chars,omitempty" db:"transcription_chars"`
	ProcessingSeconds  *float64  `json:"processing_seconds,omitempty" db:"processing_seconds"`
	Status             JobStatus `json:"status" db:"status"`
	ErrorReason        *string   `json:"error_reason,omitempty" db:"error_reason"`
	TranscriptionText  *string   `json:"transcription_text,omitempty" db:"transcription_text"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for JobRecord
func (JobRecord) TableName() string {
	return "jobs"
}

// UserStats aggregates a user's job history for the stats endpoint and
// the spreadsheet mirror. The character average skips failed jobs, which
// carry no transcript. Registration and activity come from the user row;
// both are zero for users that never materialized.
type UserStats struct {
	UserID             int64     `json:"user_id"`
	RegisteredAt       time.Time `json:"registered_at"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	TotalJobs          int64     `json:"total_jobs"`
	Jobs30d            int64     `json:"jobs_30d"`
	Jobs7d             int64     `json:"jobs_7d"`
	AvgDurationSeconds float64   `json:"avg_duration_seconds"`
	AvgChars           float64   `json:"avg_chars"`
}
