package api

import (
	"context"
	"fmt"
)

// Transcriber defines a transcription interface for converting audio files to text.
type Transcriber interface {
	Transcribe(ctx context.Context, inputFilePath string) (string, error)
}

// ServiceError marks a failure reported by the transcription backend
// itself, as opposed to a local fault like an unreadable file. Transient
// errors (rate limits, 5xx) may succeed on a later attempt.
type ServiceError struct {
	Transient bool
	Err       error
}

func (e *ServiceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("transcription service error (%s): %v", kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
