package memory

import (
	"sync"

	"github.com/davidbz/freeroute/internal/domain"
)

// DefaultEventCapacity is the ring size used when none is configured.
const DefaultEventCapacity = 1000

// EventLog is a fixed-capacity ring buffer of telemetry events.
type EventLog struct {
	mu     sync.RWMutex
	buf    []domain.TelemetryEvent
	start  int
	length int
}

// NewEventLog creates a ring buffer holding at most capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{
		buf: make([]domain.TelemetryEvent, capacity),
	}
}

// Append stores event, overwriting the oldest one when full.
func (l *EventLog) Append(event domain.TelemetryEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.buf)
	if l.length < capacity {
		l.buf[(l.start+l.length)%capacity] = event
		l.length++
		return
	}

	l.buf[l.start] = event
	l.start = (l.start + 1) % capacity
}

// Events returns a copy of the buffer, oldest first.
func (l *EventLog) Events() []domain.TelemetryEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.TelemetryEvent, l.length)
	for i := 0; i < l.length; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Clear drops all events.
func (l *EventLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.start = 0
	l.length = 0
	clear(l.buf)
}
