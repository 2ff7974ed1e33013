package workflow

import (
	"context"
	"sync"
	"time"
)

// EventType represents the type of workflow event.
type EventType string

const (
	// EventStepStarted is emitted when a step transitions to running.
	EventStepStarted EventType = "step_started"

	// EventStepCompleted is emitted when a step completes successfully.
	EventStepCompleted EventType = "step_completed"

	// EventStepFailed is emitted when a step fails, including cascading
	// failures of steps that never ran.
	EventStepFailed EventType = "step_failed"

	// EventStepSkipped is emitted when a step's when condition is false.
	EventStepSkipped EventType = "step_skipped"
)

// Event describes one step lifecycle change.
type Event struct {
	Type      EventType  `json:"type"`
	RunID     string     `json:"run_id"`
	Workflow  string     `json:"workflow"`
	Step      string     `json:"step"`
	Agent     string     `json:"agent,omitempty"`
	Status    StepStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// EventListener is a function that handles workflow events. Listeners are
// called synchronously from the step's goroutine; keep them fast.
type EventListener func(ctx context.Context, event Event)

// Emitter manages event listeners and dispatches events.
// Safe for concurrent use.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
	all       []EventListener
}

// NewEmitter creates a new event emitter.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[EventType][]EventListener)}
}

// On registers a listener for the specified event type.
func (e *Emitter) On(eventType EventType, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// OnAll registers a listener for every event type.
func (e *Emitter) OnAll(listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, listener)
}

// Emit dispatches an event to all registered listeners.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	listeners := make([]EventListener, 0, len(e.listeners[event.Type])+len(e.all))
	listeners = append(listeners, e.listeners[event.Type]...)
	listeners = append(listeners, e.all...)
	e.mu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, event)
	}
}
