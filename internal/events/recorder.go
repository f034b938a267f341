package events

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// Observer receives events as they happen. It must not block.
type Observer func(*RunEvent)

// Recorder keeps events in memory. It is an EventStore for runs without a database.
type Recorder struct {
	mu     sync.Mutex
	events []*RunEvent
}

var _ EventStore = (*Recorder)(nil)

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe appends the event; it satisfies Observer
func (r *Recorder) Observe(e *RunEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// StoreEvent appends the event
func (r *Recorder) StoreEvent(ctx context.Context, e *RunEvent) error {
	r.Observe(e)
	return nil
}

// GetEvents returns matching events in arrival order
func (r *Recorder) GetEvents(ctx context.Context, filter EventFilter) ([]*RunEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*RunEvent
	for _, e := range r.events {
		if !filter.Matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Count returns how many events of the given type were recorded
func (r *Recorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// LogObserver writes each event to logger at a level matching its severity.
// Per-item create and merge events are logged at debug.
func LogObserver(logger *log.Logger) Observer {
	return func(e *RunEvent) {
		kv := []interface{}{"type", e.Type, "run", e.RunID}
		switch {
		case e.Severity == SeverityError:
			logger.Error(e.Message, kv...)
		case e.Severity == SeverityWarning:
			logger.Warn(e.Message, kv...)
		case e.Type == EventTypeClusterCreated || e.Type == EventTypeClusterMerged:
			logger.Debug(e.Message, kv...)
		default:
			logger.Info(e.Message, kv...)
		}
	}
}

// Tee fans an event out to several observers; nil entries are skipped
func Tee(observers ...Observer) Observer {
	return func(e *RunEvent) {
		for _, o := range observers {
			if o != nil {
				o(e)
			}
		}
	}
}
