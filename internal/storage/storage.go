package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a snippet id or prefix matches nothing.
var ErrNotFound = errors.New("not found")

// Snippet is a saved piece of code.
type Snippet struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Language    string    `json:"language" yaml:"language"`
	Code        string    `json:"code" yaml:"code"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Favorite    bool      `json:"favorite" yaml:"favorite"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// ExecutionRecord is the history entry for one run.
type ExecutionRecord struct {
	ID              string    `json:"id"`
	Language        string    `json:"language"`
	SnippetID       string    `json:"snippet_id,omitempty"`
	Success         bool      `json:"success"`
	Outcome         string    `json:"outcome"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// LanguageStat aggregates execution history for one language.
type LanguageStat struct {
	Language   string    `json:"language"`
	Executions int       `json:"executions"`
	Successes  int       `json:"successes"`
	LastRunAt  time.Time `json:"last_run_at"`
}

// SnippetListOptions controls filtering and pagination for ListSnippets.
type SnippetListOptions struct {
	Language      string
	FavoritesOnly bool
	Limit         int
	Offset        int
}

// ExecutionListOptions controls filtering and pagination for ListExecutions.
type ExecutionListOptions struct {
	Language string
	Limit    int
	Offset   int
}

// Store is the persistence interface for snippets and execution history.
type Store interface {
	// CreateSnippet inserts a new snippet. The ID field must be set by the caller.
	CreateSnippet(ctx context.Context, s *Snippet) error

	// GetSnippet returns a snippet by ID or ID prefix.
	GetSnippet(ctx context.Context, id string) (*Snippet, error)

	// ListSnippets returns snippets ordered by updated_at descending.
	ListSnippets(ctx context.Context, opts SnippetListOptions) ([]Snippet, error)

	// UpdateSnippet updates mutable fields (title, language, code, description, updated_at).
	UpdateSnippet(ctx context.Context, s *Snippet) error

	// ToggleFavorite flips the favorite flag and returns the updated snippet.
	ToggleFavorite(ctx context.Context, id string) (*Snippet, error)

	DeleteSnippet(ctx context.Context, id string) error

	// RecordExecution appends to the execution history. The ID field must be set by the caller.
	RecordExecution(ctx context.Context, r *ExecutionRecord) error

	// ListExecutions returns history entries, newest first.
	ListExecutions(ctx context.Context, opts ExecutionListOptions) ([]ExecutionRecord, error)

	// LanguageStats aggregates the history per language, most used first.
	LanguageStats(ctx context.Context) ([]LanguageStat, error)

	// Close releases resources.
	Close() error
}
