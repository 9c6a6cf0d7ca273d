package kafkax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProducerPublishesWithMeta(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, logger: discardLogger()}

	if err := p.Publish(context.Background(), "journal.mood.recorded.v1", "2026-10-17", map[string]int{"mood": 4}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "journal.mood.recorded.v1" || string(msg.Key) != "2026-10-17" {
		t.Fatalf("unexpected topic/key %q/%q", msg.Topic, msg.Key)
	}
	if HeaderValue(msg.Headers, HeaderEventID) == "" || HeaderValue(msg.Headers, HeaderEventType) != "journal.mood.recorded.v1" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
	if _, err := time.Parse(time.RFC3339Nano, HeaderValue(msg.Headers, HeaderOccurredAt)); err != nil {
		t.Fatalf("occurred_at header: %v", err)
	}
	var body map[string]int
	if err := json.Unmarshal(msg.Value, &body); err != nil || body["mood"] != 4 {
		t.Fatalf("unexpected payload %s err=%v", msg.Value, err)
	}
}

func TestProducerWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{writer: &recordingWriter{err: boom}, logger: discardLogger()}
	err := p.Publish(context.Background(), "journal.cleared.v1", "moodData", struct{}{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestNewPublisherWithoutBrokersIsNop(t *testing.T) {
	p := NewPublisher(" , ", discardLogger())
	if _, ok := p.(NopPublisher); !ok {
		t.Fatalf("expected NopPublisher, got %T", p)
	}
	if err := p.Publish(context.Background(), "x", "y", nil); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers("kafka:9092, ,kafka-2:9092")
	if len(got) != 2 || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %#v", got)
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck("")(context.Background()); err == nil {
		t.Fatal("expected error for empty broker list")
	}
}

func TestNewPublisherUsesAsyncWriter(t *testing.T) {
	p := NewPublisher("localhost:9092", discardLogger())
	prod, ok := p.(*Producer)
	if !ok {
		t.Fatalf("expected *Producer, got %T", p)
	}
	w, ok := prod.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("expected *kafka.Writer, got %T", prod.writer)
	}
	if !w.Async || w.BatchTimeout != batchTimeout || w.Completion == nil {
		t.Fatalf("writer must not block callers: async=%v batch=%s completion=%v", w.Async, w.BatchTimeout, w.Completion != nil)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLogDeliveryReportsFailedMessages(t *testing.T) {
	var buf bytes.Buffer
	done := logDelivery(slog.New(slog.NewTextHandler(&buf, nil)))

	done([]kafka.Message{{Topic: "journal.cleared.v1"}}, nil)
	if buf.Len() != 0 {
		t.Fatalf("successful delivery should not log, got %q", buf.String())
	}

	msg := kafka.Message{Topic: "booking.session.confirmed.v1", Headers: eventHeaders("e-7", "booking.session.confirmed.v1", time.Now())}
	done([]kafka.Message{msg}, errors.New("leader not available"))
	out := buf.String()
	if !strings.Contains(out, "event delivery failed") || !strings.Contains(out, "e-7") {
		t.Fatalf("unexpected log output %q", out)
	}
}
