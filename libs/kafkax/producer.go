package kafkax

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher emits domain events. The topic name equals the event type.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
	Close() error
}

// NewPublisher returns a Kafka-backed publisher, or a logging no-op when no
// brokers are configured. The writer is async: Publish only enqueues, and
// delivery failures are logged from the writer's completion hook.
func NewPublisher(brokers string, logger *slog.Logger) Publisher {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		logger.Warn("event publishing disabled (no kafka brokers configured)")
		return NopPublisher{}
	}
	return &Producer{writer: newWriter(list, logger), logger: logger}
}

// batchTimeout bounds how long a queued event waits for a batch to fill.
const batchTimeout = 10 * time.Millisecond

func newWriter(brokers []string, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           5 * time.Second,
		Completion:             logDelivery(logger),
	}
}

func logDelivery(logger *slog.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		for _, m := range msgs {
			logger.Warn("event delivery failed",
				"event_type", m.Topic,
				"event_id", HeaderValue(m.Headers, HeaderEventID),
				"err", err,
			)
		}
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	logger *slog.Logger
}

func (p *Producer) Publish(ctx context.Context, eventType, key string, payload any) error {
	msg, err := BuildMessage(ctx, eventType, key, payload)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.logger.Debug("event queued", "event_type", eventType, "key", key)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// BuildMessage encodes payload as JSON and attaches event metadata and trace headers.
func BuildMessage(ctx context.Context, eventType, key string, payload any) (kafka.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	now := time.Now()
	return kafka.Message{
		Topic:   eventType,
		Key:     []byte(key),
		Value:   body,
		Time:    now,
		Headers: InjectTraceHeaders(ctx, eventHeaders(uuid.NewString(), eventType, now)),
	}, nil
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
