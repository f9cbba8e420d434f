package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
	stall    bool // block until ctx is done, like a writer retrying an unreachable broker
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if f.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaPublisher(KafkaConfig{}); err == nil {
		t.Fatalf("expected error when brokers missing")
	}
	if _, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error when topic missing")
	}
}

func TestNewWithoutBrokersIsNop(t *testing.T) {
	t.Parallel()

	p, err := New(KafkaConfig{Topic: "codetutor.executions"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := p.(Nop); !ok {
		t.Fatalf("expected Nop publisher, got %T", p)
	}
}

func TestPublishExecution(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := newKafkaPublisher(w)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	err := p.PublishExecution(context.Background(), ExecutionEvent{
		ID:              "run-1",
		Language:        "python",
		Outcome:         "ok",
		Success:         true,
		ExecutionTimeMs: 42,
		At:              at,
	})
	if err != nil {
		t.Fatalf("PublishExecution returned error: %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "python" {
		t.Fatalf("expected language key, got %q", msg.Key)
	}

	var ev map[string]any
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if ev["execution_time_ms"] != float64(42) || ev["outcome"] != "ok" {
		t.Fatalf("unexpected payload: %v", ev)
	}
	if _, ok := ev["snippet_id"]; ok {
		t.Fatalf("empty snippet_id should be omitted")
	}
}

func TestPublishExecutionWriteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	p := newKafkaPublisher(&fakeWriter{err: boom})

	err := p.PublishExecution(context.Background(), ExecutionEvent{Language: "go"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}

func TestPublishExecutionHonorsDeadline(t *testing.T) {
	t.Parallel()

	p := newKafkaPublisher(&fakeWriter{stall: true})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PublishExecution(ctx, ExecutionEvent{Language: "c"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("publish took %s past its deadline", elapsed)
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	if err := newKafkaPublisher(w).Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !w.closed {
		t.Fatalf("writer was not closed")
	}
}
