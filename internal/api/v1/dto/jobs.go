package dto

import (
	"github.com/dmlat/STT-Telegram/internal/app/pipeline"
)

// CreateJobURLRequest submits a job whose audio lives at an http(s)
// URL. duration_seconds is optional; when present the quota check runs
// before the download.
type CreateJobURLRequest struct {
	UserID          int64   `json:"user_id" binding:"required,min=1"`
	Username        string  `json:"username"`
	FirstName       string  `json:"first_name"`
	URL             string  `json:"url" binding:"required,url"`
	DurationSeconds float64 `json:"duration_seconds" binding:"omitempty,min=0"`
}

// CreateJobForm carries the multipart fields next to the uploaded file.
type CreateJobForm struct {
	UserID          int64   `form:"user_id" binding:"required,min=1"`
	Username        string  `form:"username"`
	FirstName       string  `form:"first_name"`
	DurationSeconds float64 `form:"duration_seconds" binding:"omitempty,min=0"`
}

// JobResponse is the terminal answer for a submitted job.
type JobResponse struct {
	JobID             int64   `json:"job_id,omitempty"`
	Outcome           string  `json:"outcome"`
	Text              string  `json:"text,omitempty"`
	SizeDetail        string  `json:"size_detail,omitempty"`
	Reason            string  `json:"reason,omitempty"`
	MissingSeconds    float64 `json:"missing_seconds,omitempty"`
	DurationSeconds   float64 `json:"duration_seconds"`
	ProcessingSeconds float64 `json:"processing_seconds,omitempty"`
}

// JobResponseFrom flattens a pipeline result into the wire shape.
func JobResponseFrom(res pipeline.Result) JobResponse {
	return JobResponse{
		JobID:             res.JobID,
		Outcome:           string(res.Outcome),
		Text:              res.Text,
		SizeDetail:        string(res.SizeDetail),
		Reason:            string(res.Reason),
		MissingSeconds:    res.MissingSeconds,
		DurationSeconds:   res.DurationSeconds,
		ProcessingSeconds: res.ProcessingSeconds,
	}
}
