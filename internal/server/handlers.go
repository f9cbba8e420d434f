package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/codetutor/internal/events"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/storage"
)

// maxBodyBytes bounds request bodies; code larger than this is rejected.
const maxBodyBytes = 1 << 20

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// --- Execution ---

type codeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SupportedLanguages())
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "language is required")
		return
	}

	res := s.execute(r.Context(), req.Code, req.Language, "")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.engine.AnalyzeLineByLine(req.Code, req.Language))
}

// errShuttingDown is the result error for executions refused during shutdown.
const errShuttingDown = "server is shutting down"

// execute runs code and records the run in history and on the event stream.
// Bookkeeping failures are logged and never change the result.
func (s *Server) execute(ctx context.Context, code, lang, snippetID string, opts ...executor.RunOption) executor.Result {
	if !s.running.begin() {
		return executor.Result{Error: errShuttingDown}
	}
	defer s.running.done()

	var report executor.Report
	opts = append(opts, executor.WithReport(func(r executor.Report) { report = r }))

	if s.metrics != nil {
		s.metrics.ActiveExecutions.Inc()
		defer s.metrics.ActiveExecutions.Dec()
	}

	res := s.engine.Execute(ctx, code, lang, opts...)

	// History must be written even if the client went away.
	ctx = context.WithoutCancel(ctx)
	rec := &storage.ExecutionRecord{
		ID:              uuid.New().String(),
		Language:        report.Language,
		SnippetID:       snippetID,
		Success:         res.Success,
		Outcome:         string(report.Outcome),
		ExecutionTimeMs: res.ExecutionTimeMs,
		CreatedAt:       time.Now().UTC(),
	}
	if rec.Language == "" {
		rec.Language = lang
	}

	if err := s.store.RecordExecution(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("language", rec.Language).Msg("recording execution")
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	err := s.publisher.PublishExecution(pubCtx, events.ExecutionEvent{
		ID:              rec.ID,
		Language:        rec.Language,
		Outcome:         rec.Outcome,
		Success:         rec.Success,
		ExecutionTimeMs: rec.ExecutionTimeMs,
		SnippetID:       snippetID,
		At:              rec.CreatedAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("execution", rec.ID).Msg("publishing execution event")
	}

	return res
}

// --- History ---

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	opts := storage.ExecutionListOptions{
		Language: r.URL.Query().Get("language"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}

	records, err := s.store.ListExecutions(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if records == nil {
		records = []storage.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.LanguageStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if stats == nil {
		stats = []storage.LanguageStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}
