package events

import (
	"context"
	"time"
)

// ExecutionEvent is published once per finished execution.
type ExecutionEvent struct {
	ID              string    `json:"id"`
	Language        string    `json:"language"`
	Outcome         string    `json:"outcome"`
	Success         bool      `json:"success"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	SnippetID       string    `json:"snippet_id,omitempty"`
	At              time.Time `json:"at"`
}

// Publisher delivers execution events to downstream consumers.
type Publisher interface {
	PublishExecution(ctx context.Context, ev ExecutionEvent) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishExecution(context.Context, ExecutionEvent) error { return nil }
func (Nop) Close() error                                          { return nil }
