// Package audit delivers feed access events to an audit trail without blocking requests.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one audit record.
type Event struct {
	ID         string         `json:"event_id"`
	Type       string         `json:"event_type"`
	ActorID    string         `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Subject is the Schema Registry subject audit events are registered under.
const Subject = "case_audit_events-value"

const eventSchema = `{
  "type": "object",
  "title": "CaseAuditEvent",
  "properties": {
    "event_id": {"type": "string"},
    "event_type": {"type": "string"},
    "actor_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "metadata": {"type": "object"}
  },
  "required": ["event_id", "event_type", "actor_id", "occurred_at"],
  "additionalProperties": false
}`

func newEvent(event, actorID string, metadata map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       event,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Metadata:   metadata,
	}
}

// Noop discards every event.
type Noop struct{}

// Record implements feed.AuditSink.
func (Noop) Record(context.Context, string, string, map[string]any) {}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("audit")}
}

// Record implements feed.AuditSink.
func (s *LogSink) Record(_ context.Context, event, actorID string, metadata map[string]any) {
	s.logger.Info("audit event",
		zap.String("event_type", event),
		zap.String("actor_id", actorID),
		zap.Any("metadata", metadata),
	)
	recordOutcome(event, "logged")
}
