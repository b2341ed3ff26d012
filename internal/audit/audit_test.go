package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	topics   []string
	err      error
	entered  chan struct{}
	release  chan struct{}
}

func (w *stubWriter) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if w.entered != nil {
		w.entered <- struct{}{}
	}
	if w.release != nil {
		select {
		case <-w.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.topics = append(w.topics, topic)
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *stubWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

type stubRegistry struct {
	id  int
	err error
}

func (r stubRegistry) EnsureSchema(context.Context, string, string) (int, error) {
	return r.id, r.err
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func histogramCount(t *testing.T) uint64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, publishDuration.Write(&metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestKafkaSinkPublishesFramedEvents(t *testing.T) {
	writer := &stubWriter{}
	sink := NewKafkaSink(writer, "case_audit_events", 8, WithSchemaRegistry(stubRegistry{id: 42}))
	before := histogramCount(t)

	sink.Record(context.Background(), "activity_feed.viewed", "staff-1", map[string]any{"client_id": "C1"})
	require.NoError(t, sink.Close(context.Background()))

	msgs := writer.written()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	require.Equal(t, "staff-1", string(msg.Key))
	require.Equal(t, "activity_feed.viewed", header(msg, "event_type"))
	require.Equal(t, "staff-1", header(msg, "actor_id"))
	require.Equal(t, Subject, header(msg, "schema_subject"))

	require.Equal(t, byte(0), msg.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(msg.Value[1:5]))

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value[5:], &event))
	require.Equal(t, "activity_feed.viewed", event.Type)
	require.Equal(t, "C1", event.Metadata["client_id"])
	require.NotEmpty(t, event.ID)
	require.Equal(t, before+1, histogramCount(t))
}

func TestKafkaSinkWithoutRegistryPublishesPlainJSON(t *testing.T) {
	writer := &stubWriter{}
	sink := NewKafkaSink(writer, "case_audit_events", 8)

	sink.Record(context.Background(), "activity_search.performed", "staff-2", nil)
	require.NoError(t, sink.Close(context.Background()))

	msgs := writer.written()
	require.Len(t, msgs, 1)
	require.True(t, json.Valid(msgs[0].Value))
	require.Empty(t, header(msgs[0], "schema_subject"))
}

func TestKafkaSinkDropsWhenBufferFull(t *testing.T) {
	writer := &stubWriter{entered: make(chan struct{}, 4), release: make(chan struct{})}
	sink := NewKafkaSink(writer, "case_audit_events", 1)
	dropped := eventsCounter.WithLabelValues("drop.test", "dropped")
	before := testutil.ToFloat64(dropped)

	sink.Record(context.Background(), "drop.test", "staff-1", nil)
	<-writer.entered // worker holds the first event
	sink.Record(context.Background(), "drop.test", "staff-1", nil)
	sink.Record(context.Background(), "drop.test", "staff-1", nil)

	require.Equal(t, before+1, testutil.ToFloat64(dropped))

	close(writer.release)
	require.NoError(t, sink.Close(context.Background()))
	require.Len(t, writer.written(), 2)
}

func TestKafkaSinkCountsFailures(t *testing.T) {
	writer := &stubWriter{err: errors.New("broker down")}
	core, logs := observer.New(zapcore.ErrorLevel)
	sink := NewKafkaSink(writer, "case_audit_events", 4, WithKafkaLogger(zap.New(core)))
	failed := eventsCounter.WithLabelValues("fail.test", "failed")
	before := testutil.ToFloat64(failed)

	sink.Record(context.Background(), "fail.test", "staff-1", nil)
	require.NoError(t, sink.Close(context.Background()))

	require.Equal(t, before+1, testutil.ToFloat64(failed))
	require.Equal(t, 1, logs.FilterMessage("publish audit event").Len())
}

func TestKafkaSinkSkipsEventWhenSchemaUnavailable(t *testing.T) {
	writer := &stubWriter{}
	sink := NewKafkaSink(writer, "case_audit_events", 4, WithSchemaRegistry(stubRegistry{err: errors.New("registry down")}))

	sink.Record(context.Background(), "activity_feed.viewed", "staff-1", nil)
	require.NoError(t, sink.Close(context.Background()))
	require.Empty(t, writer.written())
}

func TestKafkaSinkRejectsEventsAfterClose(t *testing.T) {
	writer := &stubWriter{}
	sink := NewKafkaSink(writer, "case_audit_events", 4)
	require.NoError(t, sink.Close(context.Background()))
	require.ErrorIs(t, sink.Close(context.Background()), ErrSinkClosed)

	sink.Record(context.Background(), "late.test", "staff-1", nil)
	require.Empty(t, writer.written())
}

func TestKafkaSinkCloseHonoursContext(t *testing.T) {
	writer := &stubWriter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	sink := NewKafkaSink(writer, "case_audit_events", 4, WithPublishTimeout(time.Minute))
	sink.Record(context.Background(), "slow.test", "staff-1", nil)
	<-writer.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, sink.Close(ctx), context.DeadlineExceeded)

	close(writer.release)
	<-sink.done
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var gets, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			require.Equal(t, "/subjects/"+Subject+"/versions/latest", r.URL.Path)
			gets.Add(1)
			http.NotFound(w, r)
		case http.MethodPost:
			require.Equal(t, "/subjects/"+Subject+"/versions", r.URL.Path)
			posts.Add(1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "JSON", body["schemaType"])
			_ = json.NewEncoder(w).Encode(map[string]int{"id": 7})
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), Subject, eventSchema)
	require.NoError(t, err)
	require.Equal(t, 7, id)

	id, err = client.EnsureSchema(context.Background(), Subject, eventSchema)
	require.NoError(t, err)
	require.Equal(t, 7, id)
	require.Equal(t, int32(1), gets.Load())
	require.Equal(t, int32(1), posts.Load())
}

func TestSchemaRegistryReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), Subject, eventSchema)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSubjectNotFound)
	require.Contains(t, err.Error(), "500")
}

func TestLogSinkWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewLogSink(zap.New(core)).Record(context.Background(), "activity_feed.viewed", "staff-1", map[string]any{"client_id": "C1"})

	entries := logs.FilterMessage("audit event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "activity_feed.viewed", fields["event_type"])
	require.Equal(t, "staff-1", fields["actor_id"])
	require.Equal(t, "audit", entries[0].LoggerName)
}

func TestNoopAcceptsEvents(t *testing.T) {
	require.NotPanics(t, func() { Noop{}.Record(context.Background(), "x", "y", nil) })
}

func TestKafkaProducerReusesWriterPerTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"127.0.0.1:9092"}, WithRequiredAcks(kafka.RequireAll), WithBatchTimeout(10*time.Millisecond))

	first, err := p.writer("case_audit_events")
	require.NoError(t, err)
	again, err := p.writer("case_audit_events")
	require.NoError(t, err)
	other, err := p.writer("case_audit_events_replay")
	require.NoError(t, err)

	require.Same(t, first, again)
	require.NotSame(t, first, other)
	require.Equal(t, kafka.RequireAll, first.RequiredAcks)
	require.Equal(t, 10*time.Millisecond, first.BatchTimeout)
	require.Equal(t, "case_audit_events", first.Topic)

	require.NoError(t, p.Close())
	require.ErrorIs(t, p.WriteMessages(context.Background(), "case_audit_events", kafka.Message{}), ErrSinkClosed)
}
