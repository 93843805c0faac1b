package events

import (
	"sync"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
)

// Event is one progress update from a running tool.
type Event struct {
	Time      time.Time `json:"time"`
	RequestID string    `json:"requestId,omitempty"`
	Tool      string    `json:"tool"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
}

// Sink receives every published event. Publish must not block on slow
// consumers; events are best-effort.
type Sink interface {
	Publish(ev Event)
}

// Emitter fans events out to the configured sinks. A nil Emitter is valid
// and publishes nothing.
type Emitter struct {
	mu    sync.RWMutex
	sinks []Sink
	now   func() time.Time
}

func NewEmitter(now func() time.Time, sinks ...Sink) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{sinks: sinks, now: now}
}

func (e *Emitter) Attach(s Sink) {
	if e == nil || s == nil {
		return
	}
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
}

func (e *Emitter) Publish(ev Event) {
	if e == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.mu.RLock()
	sinks := e.sinks
	e.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(ev)
	}
}

// Progress wraps a tool's progress callback so every update also reaches the
// sinks, tagged with the tool name and request id.
func (e *Emitter) Progress(toolName, requestID string, report tool.ProgressFunc) tool.ProgressFunc {
	report = tool.EnsureProgress(report)
	if e == nil {
		return report
	}
	return func(percent int, message string) {
		report(percent, message)
		e.Publish(Event{
			RequestID: requestID,
			Tool:      toolName,
			Percent:   percent,
			Message:   message,
		})
	}
}
