package pipeline

import "sync"

// Stage identifies a pipeline stage.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageReport    Stage = "report"
	StageAggregate Stage = "aggregate"
)

// EventStatus is the state of a pin within a stage.
type EventStatus string

const (
	EventWorking  EventStatus = "working"
	EventComplete EventStatus = "complete"
	EventFailed   EventStatus = "failed"
)

// Event is emitted to the user during pipeline execution.
type Event struct {
	Stage   Stage
	Pin     string // empty for stage-level events
	Status  EventStatus
	Message string
}

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan Event, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event Event) {
	select {
	case pr.ch <- event:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan Event {
	return pr.ch
}

// Close shuts down the event channel. Emit must not be called afterwards.
// Safe to call more than once.
func (pr *ProgressReporter) Close() {
	pr.closeOnce.Do(func() { close(pr.ch) })
}
