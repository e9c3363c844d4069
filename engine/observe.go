package engine

import "context"

// Span is one unit of a distributed trace. The tracing backend itself is an
// external collaborator; the engine only starts, annotates and ends spans.
type Span interface {
	SetAttribute(key string, value any)
	End()
}

// Tracer creates spans. The returned context carries the span so nested and
// parallel invocations inherit the same trace identity.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// NoOpTracer discards all spans.
type NoOpTracer struct{}

// StartSpan implements Tracer.
func (NoOpTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(key string, value any) {}
func (noopSpan) End()                               {}

// ExecutionEvent describes one completed task execution for the cluster-event
// emitter.
type ExecutionEvent struct {
	Success    bool           `json:"success"`
	DurationMS int64          `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EventEmitter receives a best-effort notification after each task execution.
// Emitter failures must never fail the task; the engine logs and moves on.
type EventEmitter interface {
	EmitExecutionEvent(taskName string, event ExecutionEvent) error
}

// NoOpEmitter discards all events.
type NoOpEmitter struct{}

// EmitExecutionEvent implements EventEmitter.
func (NoOpEmitter) EmitExecutionEvent(taskName string, event ExecutionEvent) error { return nil }
