// Package telemetry defines the session-transition event and the emitter
// interface its sinks (OTel logs, Kafka) implement.
package telemetry

import (
	"context"
	"time"
)

// Event types emitted by the session manager.
const (
	EventSessionResolved = "session_resolved"
	EventSignedOut       = "signed_out"
)

// Event records one session transition for observability sinks.
type Event struct {
	UserID    string
	Email     string
	Role      string
	State     string
	EventType string
	Source    string
	CreatedAt time.Time
}

// EventEmitter emits transition events (e.g. to OTel Logs or Kafka).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
