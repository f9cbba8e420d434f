package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/codetutor/internal/storage"

	_ "modernc.org/sqlite"
)

// Fixed-width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const snippetColumns = `id, title, language, code, description, favorite, created_at, updated_at`

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateSnippet(ctx context.Context, sn *storage.Snippet) error {
	now := time.Now().UTC()
	sn.CreatedAt = now
	sn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snippets (`+snippetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sn.ID, sn.Title, sn.Language, sn.Code, sn.Description, sn.Favorite,
		sn.CreatedAt.Format(timeFormat), sn.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting snippet: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSnippet(ctx context.Context, id string) (*storage.Snippet, error) {
	// Try exact match first, then prefix match
	row := s.db.QueryRowContext(ctx, `SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)
	sn, err := scanSnippet(row)
	if err == nil {
		return sn, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying snippet: %w", err)
	}

	matches, err := s.querySnippets(ctx, `SELECT `+snippetColumns+` FROM snippets WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("snippet %s: %w", id, storage.ErrNotFound)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous snippet prefix %q matches %d snippets", id, len(matches))
	}
}

func (s *SQLiteStore) ListSnippets(ctx context.Context, opts storage.SnippetListOptions) ([]storage.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE 1 = 1`
	var args []any

	if opts.Language != "" {
		query += ` AND language = ?`
		args = append(args, opts.Language)
	}
	if opts.FavoritesOnly {
		query += ` AND favorite = 1`
	}

	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	return s.querySnippets(ctx, query, args...)
}

func (s *SQLiteStore) UpdateSnippet(ctx context.Context, sn *storage.Snippet) error {
	sn.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE snippets SET title = ?, language = ?, code = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		sn.Title, sn.Language, sn.Code, sn.Description, sn.UpdatedAt.Format(timeFormat), sn.ID,
	)
	if err != nil {
		return fmt.Errorf("updating snippet: %w", err)
	}
	return requireAffected(res, sn.ID)
}

func (s *SQLiteStore) ToggleFavorite(ctx context.Context, id string) (*storage.Snippet, error) {
	sn, err := s.GetSnippet(ctx, id)
	if err != nil {
		return nil, err
	}

	sn.Favorite = !sn.Favorite
	sn.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `UPDATE snippets SET favorite = ?, updated_at = ? WHERE id = ?`,
		sn.Favorite, sn.UpdatedAt.Format(timeFormat), sn.ID)
	if err != nil {
		return nil, fmt.Errorf("toggling favorite: %w", err)
	}
	return sn, nil
}

func (s *SQLiteStore) DeleteSnippet(ctx context.Context, id string) error {
	// Resolve prefix first
	sn, err := s.GetSnippet(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, sn.ID)
	return err
}

func (s *SQLiteStore) RecordExecution(ctx context.Context, r *storage.ExecutionRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, language, snippet_id, success, outcome, execution_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Language, r.SnippetID, r.Success, r.Outcome, r.ExecutionTimeMs,
		r.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, opts storage.ExecutionListOptions) ([]storage.ExecutionRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, language, snippet_id, success, outcome, execution_time_ms, created_at FROM executions`
	var args []any

	if opts.Language != "" {
		query += ` WHERE language = ?`
		args = append(args, opts.Language)
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var records []storage.ExecutionRecord
	for rows.Next() {
		var r storage.ExecutionRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Language, &r.SnippetID, &r.Success, &r.Outcome,
			&r.ExecutionTimeMs, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) LanguageStats(ctx context.Context) ([]storage.LanguageStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*), SUM(success), MAX(created_at)
		FROM executions
		GROUP BY language
		ORDER BY COUNT(*) DESC, language`)
	if err != nil {
		return nil, fmt.Errorf("aggregating executions: %w", err)
	}
	defer rows.Close()

	var stats []storage.LanguageStat
	for rows.Next() {
		var st storage.LanguageStat
		var lastRun string
		if err := rows.Scan(&st.Language, &st.Executions, &st.Successes, &lastRun); err != nil {
			return nil, err
		}
		st.LastRunAt, _ = time.Parse(timeFormat, lastRun)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) querySnippets(ctx context.Context, query string, args ...any) ([]storage.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snippets: %w", err)
	}
	defer rows.Close()

	var snippets []storage.Snippet
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, *sn)
	}
	return snippets, rows.Err()
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("snippet %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(s scanner) (*storage.Snippet, error) {
	var sn storage.Snippet
	var createdAt, updatedAt string
	err := s.Scan(&sn.ID, &sn.Title, &sn.Language, &sn.Code, &sn.Description,
		&sn.Favorite, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sn.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	sn.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &sn, nil
}
