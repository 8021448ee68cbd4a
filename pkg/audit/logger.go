package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log appends an event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the log
	Close() error
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }

// NewEvent builds an event stamped with a fresh ID, the current time and the
// trace of the active span
func NewEvent(ctx context.Context, eventType EventType, status EventStatus, plugin string) *Event {
	event := &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Plugin:    plugin,
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasTraceID() {
		event.TraceID = spanCtx.TraceID().String()
	}
	return event
}
