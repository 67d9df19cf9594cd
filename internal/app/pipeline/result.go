package pipeline

import (
	"errors"
	"fmt"

	"github.com/dmlat/STT-Telegram/internal/app/api"
)

// Outcome is the terminal state of one job.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Reason classifies why a job did not complete. The set is closed;
// callers switch on it instead of matching error strings.
type Reason string

const (
	ReasonInsufficientBalance       Reason = "insufficient_balance"
	ReasonFileTooLarge              Reason = "file_too_large"
	ReasonCompressionFailed         Reason = "compression_failed"
	ReasonTranscriptionServiceError Reason = "transcription_service_error"
	ReasonInternalError             Reason = "internal_error"
)

// SizeDetail records which file was actually transcribed.
type SizeDetail string

const (
	SizeOriginal   SizeDetail = "original"
	SizeCompressed SizeDetail = "compressed"
)

// JobError pairs a classified reason with its underlying cause.
type JobError struct {
	Reason Reason
	Err    error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Request describes one inbound transcription job.
type Request struct {
	UserID    int64
	Username  string
	FirstName string

	// AudioRef is resolved by the file store: a staged local path or an
	// http(s) URL.
	AudioRef string

	// DurationSeconds, when the source already knows it, lets the quota
	// check run before any download. Zero means measure after fetch.
	DurationSeconds float64

	// SizeBytes as reported by the source. The staged size is what the
	// ceiling check uses.
	SizeBytes int64
}

// Result is the terminal answer for a job. Reason is set for Rejected
// and Failed outcomes; Text and SizeDetail for Completed ones.
type Result struct {
	Outcome           Outcome
	Text              string
	SizeDetail        SizeDetail
	Reason            Reason
	MissingSeconds    float64
	DurationSeconds   float64
	ProcessingSeconds float64
	JobID             int64
}

// classifyTranscription maps a transcriber error onto the taxonomy:
// backend-reported failures keep their own reason, everything else is
// internal.
func classifyTranscription(err error) *JobError {
	var svcErr *api.ServiceError
	if errors.As(err, &svcErr) {
		return &JobError{Reason: ReasonTranscriptionServiceError, Err: err}
	}
	return &JobError{Reason: ReasonInternalError, Err: err}
}
