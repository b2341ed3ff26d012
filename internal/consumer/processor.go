// Package consumer reads case audit events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reader exposes the subset of kafka.Reader the processor needs.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded audit events.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded form of one audit record.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	ActorID       string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetryDelay sets the pause after a failed fetch or handler call.
func WithRetryDelay(delay time.Duration) Option {
	return func(p *Processor) {
		p.retryDelay = delay
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches them to a Handler.
// A message is committed only after the handler accepts it; undecodable messages are
// committed and counted so they cannot wedge the partition.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		logger:     zap.NewNop(),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks processing messages until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch audit message", zap.Error(err))
			if err := p.pause(ctx); err != nil {
				return err
			}
			continue
		}

		event, err := decodeMessage(msg)
		if err != nil {
			p.logger.Warn("decode audit message",
				zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			recordDecodeError(msg.Topic)
			if err := p.reader.CommitMessages(ctx, msg); err != nil {
				p.logger.Warn("commit after decode failure", zap.Error(err))
			}
			continue
		}

		if err := p.handler.Handle(ctx, event); err != nil {
			p.logger.Error("handle audit message",
				zap.String("event_type", event.EventType), zap.String("actor_id", event.ActorID), zap.Int64("offset", event.Offset), zap.Error(err))
			recordHandlerError(event)
			if err := p.pause(ctx); err != nil {
				return err
			}
			continue
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.logger.Warn("commit audit message", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		recordProcessed(event)
	}
}

func (p *Processor) pause(ctx context.Context) error {
	if p.retryDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decodeMessage accepts Confluent-framed payloads (zero magic byte and a 4-byte schema id)
// as well as bare JSON objects.
func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, "event_type")
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	actorID, _ := headerValue(msg, "actor_id")
	schemaSubject, _ := headerValue(msg, "schema_subject")

	var (
		schemaID int
		body     []byte
	)
	switch {
	case len(msg.Value) >= 5 && msg.Value[0] == 0:
		schemaID = int(binary.BigEndian.Uint32(msg.Value[1:5]))
		body = msg.Value[5:]
	case len(msg.Value) > 0 && msg.Value[0] == '{':
		body = msg.Value
	default:
		return Message{}, fmt.Errorf("invalid payload of %d bytes", len(msg.Value))
	}
	if !json.Valid(body) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		ActorID:       string(actorID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      schemaID,
		Payload:       json.RawMessage(append([]byte(nil), body...)),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
