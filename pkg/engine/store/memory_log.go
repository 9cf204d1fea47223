package store

import (
	"context"
	"sync"
	"time"

	"AgentCore/pkg/engine/api"
)

// MemoryEventLog implements EventLog in memory, keyed by prompt id.
type MemoryEventLog struct {
	mu     sync.RWMutex
	events map[string][]api.Event
}

// NewMemoryEventLog creates a new in-memory event log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{events: make(map[string][]api.Event)}
}

// Append adds an event to the log.
func (l *MemoryEventLog) Append(ctx context.Context, promptID string, e api.Event) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[promptID] = append(l.events[promptID], e)
	return nil
}

// Replay returns an event stream over everything recorded for a prompt.
func (l *MemoryEventLog) Replay(ctx context.Context, promptID string) (api.EventStream, error) {
	l.mu.RLock()
	recorded := append([]api.Event(nil), l.events[promptID]...)
	l.mu.RUnlock()
	return &sliceEventStream{events: recorded}, nil
}
