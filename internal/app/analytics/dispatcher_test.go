package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSink captures events; started/gate let a test hold the worker
// inside Emit to fill the buffer deterministically.
type recordingSink struct {
	mu      sync.Mutex
	events  []Event
	started chan struct{}
	gate    chan struct{}
}

func (s *recordingSink) Emit(e Event) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8, zap.NewNop())

	d.Emit(Event{Kind: EventJobCompleted})
	d.Emit(Event{Kind: EventUserStats})
	d.Emit(Event{Kind: EventJobFailed})
	d.Close()

	assert.Equal(t, []EventKind{EventJobCompleted, EventUserStats, EventJobFailed}, sink.kinds())
}

func TestDispatcher_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	sink := &recordingSink{
		started: make(chan struct{}, 4),
		gate:    make(chan struct{}),
	}
	d := NewDispatcher(sink, 1, zap.NewNop())

	d.Emit(Event{Kind: EventJobCompleted})
	// Wait until the worker holds the first event, so the single buffer
	// slot is empty again.
	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first event")
	}

	d.Emit(Event{Kind: EventUserStats}) // fills the buffer
	d.Emit(Event{Kind: EventJobFailed}) // must drop, not block

	close(sink.gate)
	d.Close()

	require.Len(t, sink.kinds(), 2)
	assert.Equal(t, []EventKind{EventJobCompleted, EventUserStats}, sink.kinds())
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 16, zap.NewNop())

	for i := 0; i < 10; i++ {
		d.Emit(Event{Kind: EventJobCompleted})
	}
	d.Close()

	assert.Len(t, sink.kinds(), 10)
}

func TestDispatcher_EmitAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 4, zap.NewNop())
	d.Close()
	d.Close() // repeat close is a no-op

	assert.NotPanics(t, func() {
		d.Emit(Event{Kind: EventJobCompleted})
	})
	assert.Empty(t, sink.kinds())
}
