package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/codetutor/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSnippet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sn := &storage.Snippet{
		ID:          "abc12345-0000-0000-0000-000000000000",
		Title:       "fizzbuzz",
		Language:    "python",
		Code:        "for i in range(1, 16):\n    print(i)\n",
		Description: "classic",
	}

	if err := s.CreateSnippet(ctx, sn); err != nil {
		t.Fatalf("CreateSnippet: %v", err)
	}

	got, err := s.GetSnippet(ctx, sn.ID)
	if err != nil {
		t.Fatalf("GetSnippet: %v", err)
	}

	if got.Title != "fizzbuzz" {
		t.Errorf("title = %q, want %q", got.Title, "fizzbuzz")
	}
	if got.Code != sn.Code {
		t.Errorf("code = %q, want %q", got.Code, sn.Code)
	}
	if got.Favorite {
		t.Error("new snippet should not be a favorite")
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
}

func TestGetSnippetByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sn := &storage.Snippet{ID: "abc12345-0000-0000-0000-000000000000", Language: "go"}
	if err := s.CreateSnippet(ctx, sn); err != nil {
		t.Fatalf("CreateSnippet: %v", err)
	}

	got, err := s.GetSnippet(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetSnippet by prefix: %v", err)
	}
	if got.ID != sn.ID {
		t.Errorf("got ID %q, want %q", got.ID, sn.ID)
	}
}

func TestGetSnippetAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"abc11111-0000-0000-0000-000000000000",
	} {
		if err := s.CreateSnippet(ctx, &storage.Snippet{ID: id, Language: "c"}); err != nil {
			t.Fatalf("CreateSnippet: %v", err)
		}
	}

	_, err := s.GetSnippet(ctx, "abc")
	if err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
	if errors.Is(err, storage.ErrNotFound) {
		t.Error("ambiguous prefix is not a not-found error")
	}
}

func TestGetSnippetNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetSnippet(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListSnippets(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateSnippet(ctx, &storage.Snippet{ID: "a1", Language: "python"})
	s.CreateSnippet(ctx, &storage.Snippet{ID: "a2", Language: "ruby"})
	s.CreateSnippet(ctx, &storage.Snippet{ID: "a3", Language: "python"})

	all, err := s.ListSnippets(ctx, storage.SnippetListOptions{})
	if err != nil {
		t.Fatalf("ListSnippets: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d snippets, want 3", len(all))
	}

	py, err := s.ListSnippets(ctx, storage.SnippetListOptions{Language: "python"})
	if err != nil {
		t.Fatalf("ListSnippets: %v", err)
	}
	if len(py) != 2 {
		t.Errorf("got %d python snippets, want 2", len(py))
	}

	limited, err := s.ListSnippets(ctx, storage.SnippetListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListSnippets: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d snippets, want 2", len(limited))
	}
}

func TestListSnippetsOrderedByUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &storage.Snippet{ID: "first", Language: "go"}
	s.CreateSnippet(ctx, first)
	time.Sleep(time.Millisecond)
	s.CreateSnippet(ctx, &storage.Snippet{ID: "second", Language: "go"})
	time.Sleep(time.Millisecond)

	first.Code = "package main"
	if err := s.UpdateSnippet(ctx, first); err != nil {
		t.Fatalf("UpdateSnippet: %v", err)
	}

	list, err := s.ListSnippets(ctx, storage.SnippetListOptions{})
	if err != nil {
		t.Fatalf("ListSnippets: %v", err)
	}
	if len(list) != 2 || list[0].ID != "first" {
		t.Errorf("order = %v, want most recently updated first", list)
	}
}

func TestUpdateSnippetMissing(t *testing.T) {
	s := testStore(t)

	err := s.UpdateSnippet(context.Background(), &storage.Snippet{ID: "ghost", Language: "c"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateSnippet(ctx, &storage.Snippet{ID: "fav1", Language: "php"})
	s.CreateSnippet(ctx, &storage.Snippet{ID: "fav2", Language: "php"})

	sn, err := s.ToggleFavorite(ctx, "fav1")
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !sn.Favorite {
		t.Error("expected favorite after first toggle")
	}

	favs, err := s.ListSnippets(ctx, storage.SnippetListOptions{FavoritesOnly: true})
	if err != nil {
		t.Fatalf("ListSnippets: %v", err)
	}
	if len(favs) != 1 || favs[0].ID != "fav1" {
		t.Errorf("favorites = %v", favs)
	}

	sn, err = s.ToggleFavorite(ctx, "fav1")
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if sn.Favorite {
		t.Error("expected not favorite after second toggle")
	}
}

func TestDeleteSnippet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateSnippet(ctx, &storage.Snippet{ID: "del1", Language: "java"})
	s.RecordExecution(ctx, &storage.ExecutionRecord{ID: "e1", Language: "java", SnippetID: "del1", Success: true})

	if err := s.DeleteSnippet(ctx, "del1"); err != nil {
		t.Fatalf("DeleteSnippet: %v", err)
	}

	if _, err := s.GetSnippet(ctx, "del1"); err == nil {
		t.Fatal("expected error after delete")
	}

	history, err := s.ListExecutions(ctx, storage.ExecutionListOptions{})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history should survive snippet deletion, got %d records", len(history))
	}
}

func TestExecutionHistoryAndStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []storage.ExecutionRecord{
		{ID: "e1", Language: "python", Success: true, Outcome: "ok", ExecutionTimeMs: 30, CreatedAt: base},
		{ID: "e2", Language: "python", Success: false, Outcome: "timeout", ExecutionTimeMs: 10000, CreatedAt: base.Add(time.Minute)},
		{ID: "e3", Language: "go", Success: true, Outcome: "ok", ExecutionTimeMs: 400, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		if err := s.RecordExecution(ctx, &records[i]); err != nil {
			t.Fatalf("RecordExecution: %v", err)
		}
	}

	history, err := s.ListExecutions(ctx, storage.ExecutionListOptions{Language: "python"})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(history) != 2 || history[0].ID != "e2" {
		t.Errorf("history = %+v, want newest python run first", history)
	}
	if history[0].Outcome != "timeout" || history[0].Success {
		t.Errorf("record = %+v", history[0])
	}

	stats, err := s.LanguageStats(ctx)
	if err != nil {
		t.Fatalf("LanguageStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}
	py := stats[0]
	if py.Language != "python" || py.Executions != 2 || py.Successes != 1 {
		t.Errorf("python stats = %+v", py)
	}
	if !py.LastRunAt.Equal(base.Add(time.Minute)) {
		t.Errorf("last run = %s", py.LastRunAt)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "codetutor.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.CreateSnippet(ctx, &storage.Snippet{ID: "keep", Language: "rust"}); err != nil {
		t.Fatalf("CreateSnippet: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.GetSnippet(ctx, "keep"); err != nil {
		t.Errorf("GetSnippet after reopen: %v", err)
	}
}
