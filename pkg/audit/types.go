package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunRefused   EventType = "run.refused"
	EventTypeRunError     EventType = "run.error"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is one line of the audit log
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	Plugin string   `json:"plugin"`
	Runner string   `json:"runner,omitempty"`
	Phases []string `json:"phases,omitempty"`

	ReturnCode *int   `json:"returncode,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Report     string `json:"report,omitempty"`

	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
