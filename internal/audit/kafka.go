package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(ctx context.Context, subject, schema string) (int, error)
}

// ErrSinkClosed is returned by a second Close and by writes after the producer closed.
var ErrSinkClosed = errors.New("audit sink closed")

// KafkaSink publishes audit events to Kafka from a single background worker. Record never
// blocks: when the buffer is full the event is dropped and counted.
type KafkaSink struct {
	writer   messageWriter
	registry schemaRegistrar
	topic    string
	timeout  time.Duration
	logger   *zap.Logger

	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// KafkaOption configures a KafkaSink.
type KafkaOption func(*KafkaSink)

// WithSchemaRegistry frames payloads with the Confluent wire format using the schema id
// registered for Subject.
func WithSchemaRegistry(registry schemaRegistrar) KafkaOption {
	return func(s *KafkaSink) {
		s.registry = registry
	}
}

// WithKafkaLogger overrides the logger.
func WithKafkaLogger(logger *zap.Logger) KafkaOption {
	return func(s *KafkaSink) {
		s.logger = logger
	}
}

// WithPublishTimeout bounds each publish attempt.
func WithPublishTimeout(timeout time.Duration) KafkaOption {
	return func(s *KafkaSink) {
		s.timeout = timeout
	}
}

// NewKafkaSink starts a sink publishing to topic with room for buffer pending events.
func NewKafkaSink(writer messageWriter, topic string, buffer int, opts ...KafkaOption) *KafkaSink {
	if buffer < 1 {
		buffer = 1
	}
	s := &KafkaSink{
		writer:  writer,
		topic:   topic,
		timeout: 5 * time.Second,
		logger:  zap.NewNop(),
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Record implements feed.AuditSink.
func (s *KafkaSink) Record(_ context.Context, event, actorID string, metadata map[string]any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		recordOutcome(event, "dropped")
		return
	}

	select {
	case s.queue <- newEvent(event, actorID, metadata):
		queueDepth.Inc()
	default:
		recordOutcome(event, "dropped")
		s.logger.Warn("audit buffer full, dropping event", zap.String("event_type", event), zap.String("actor_id", actorID))
	}
}

// Close stops accepting events and waits for the buffered ones to be published or for ctx
// to end.
func (s *KafkaSink) Close(ctx context.Context) error {
	err := ErrSinkClosed
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		err = nil
	})
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KafkaSink) run() {
	defer close(s.done)
	for event := range s.queue {
		queueDepth.Dec()
		s.publish(event)
	}
}

func (s *KafkaSink) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		recordOutcome(event.Type, "failed")
		s.logger.Error("encode audit event", zap.String("event_type", event.Type), zap.Error(err))
		return
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.Type)},
		{Key: "actor_id", Value: []byte(event.ActorID)},
	}
	value := payload
	if s.registry != nil {
		schemaID, err := s.registry.EnsureSchema(ctx, Subject, eventSchema)
		if err != nil {
			recordOutcome(event.Type, "failed")
			s.logger.Error("resolve audit schema", zap.String("subject", Subject), zap.Error(err))
			return
		}
		value = encodeWireFormat(schemaID, payload)
		headers = append(headers, kafka.Header{Key: "schema_subject", Value: []byte(Subject)})
	}

	start := time.Now()
	err = s.writer.WriteMessages(ctx, s.topic, kafka.Message{
		Key:     []byte(event.ActorID),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	})
	publishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		recordOutcome(event.Type, "failed")
		s.logger.Error("publish audit event", zap.String("event_type", event.Type), zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	recordOutcome(event.Type, "published")
}

// encodeWireFormat applies Confluent framing: a zero magic byte, then the big-endian schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
