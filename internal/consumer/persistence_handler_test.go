package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	sql  string
	args []any
	err  error
}

func (e *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = sql
	e.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), e.err
}

func TestPersistenceHandlerBindsMessageFields(t *testing.T) {
	db := &recordingExecer{}
	handler := &PersistenceHandler{db: db}

	msg := Message{
		EventType:     "activity_search.performed",
		ActorID:       "staff-9",
		SchemaID:      3,
		SchemaSubject: "case_audit_events-value",
		Topic:         "case_audit_events",
		Partition:     2,
		Offset:        77,
		Payload:       []byte(`{"occurred_at":"2024-05-01T08:00:00Z"}`),
	}
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Contains(t, db.sql, "INSERT INTO case_audit_log")
	require.Contains(t, db.sql, "ON CONFLICT (topic, partition, record_offset) DO NOTHING")
	require.Equal(t, []any{
		"activity_search.performed", "staff-9", 3, "case_audit_events-value", "case_audit_events", 2, int64(77),
		[]byte(msg.Payload), time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}, db.args)
}

func TestPersistenceHandlerReturnsExecErrors(t *testing.T) {
	handler := &PersistenceHandler{db: &recordingExecer{err: errors.New("db down")}}
	require.Error(t, handler.Handle(context.Background(), Message{Payload: []byte(`{}`), Timestamp: time.Now()}))
}
