package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PersistenceHandler writes consumed audit events into case_audit_log. Redelivered
// messages are ignored by their topic, partition and offset.
type PersistenceHandler struct {
	db execer
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{db: pool}
}

// Handle implements Handler.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.db.Exec(ctx,
		`INSERT INTO case_audit_log (event_type, actor_id, schema_id, schema_subject, topic, partition, record_offset, payload, occurred_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.ActorID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
		occurredAt(msg),
	)
	return err
}

// occurredAt prefers the event's own timestamp over the broker's.
func occurredAt(msg Message) time.Time {
	var body struct {
		OccurredAt time.Time `json:"occurred_at"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err == nil && !body.OccurredAt.IsZero() {
		return body.OccurredAt.UTC()
	}
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp.UTC()
	}
	return time.Now().UTC()
}
