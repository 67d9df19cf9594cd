package analytics

import (
	"time"

	"github.com/dmlat/STT-Telegram/internal/app/model"
)

// EventKind names the analytics events the pipeline emits.
type EventKind string

const (
	EventJobCompleted EventKind = "job_completed"
	EventJobFailed    EventKind = "job_failed"
	EventUserStats    EventKind = "user_stats"
)

// JobEvent carries the per-job numbers for the jobs sheet.
type JobEvent struct {
	UserID             int64
	DurationSeconds    float64
	ProcessingSeconds  float64
	TranscriptionChars int64
	Reason             string
}

// Event is one fire-and-forget analytics record. Exactly one of Job and
// Stats is set, depending on Kind.
type Event struct {
	Kind  EventKind
	At    time.Time
	Job   *JobEvent
	Stats *model.UserStats
}

// Sink consumes analytics events. Emit never returns an error and must
// never gate a job outcome; sinks log their own failures.
type Sink interface {
	Emit(e Event)
}

// Nop discards everything. Used when no analytics target is configured.
type Nop struct{}

func (Nop) Emit(Event) {}
