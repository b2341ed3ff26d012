package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer hands audit messages to one kafka.Writer per topic. Writers are created on
// first use and keyed by actor id, so one actor's events stay ordered within a partition.
type KafkaProducer struct {
	brokers      []string
	acks         kafka.RequiredAcks
	batchTimeout time.Duration

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// ProducerOption configures a KafkaProducer.
type ProducerOption func(*KafkaProducer)

// WithRequiredAcks overrides the acknowledgement level. Audit events default to a leader ack.
func WithRequiredAcks(acks kafka.RequiredAcks) ProducerOption {
	return func(p *KafkaProducer) {
		p.acks = acks
	}
}

// WithBatchTimeout bounds how long a writer waits to fill a batch.
func WithBatchTimeout(timeout time.Duration) ProducerOption {
	return func(p *KafkaProducer) {
		p.batchTimeout = timeout
	}
}

// NewKafkaProducer creates a KafkaProducer for brokers.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		brokers:      brokers,
		acks:         kafka.RequireOne,
		batchTimeout: 50 * time.Millisecond,
		writers:      make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages publishes msgs to topic.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer, err := p.writer(topic)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrSinkClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           p.acks,
		BatchTimeout:           p.batchTimeout,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w, nil
}

// Close flushes and closes every writer. Later writes fail with ErrSinkClosed.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.writers, topic)
	}
	return errors.Join(errs...)
}
