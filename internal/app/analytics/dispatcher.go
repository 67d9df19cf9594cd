package analytics

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatcher queues events onto a single worker so the caller never
// waits on the sink. When the buffer is full the event is dropped with a
// warning; analytics loss must never back-pressure a job.
type Dispatcher struct {
	sink   Sink
	events chan Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink Sink, buffer int, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		sink:   sink,
		events: make(chan Event, buffer),
		logger: logger,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.events {
		d.sink.Emit(e)
	}
}

func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.events <- e:
	default:
		d.logger.Warn("analytics buffer full, dropping event", zap.String("kind", string(e.Kind)))
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.events)
	d.wg.Wait()
}
