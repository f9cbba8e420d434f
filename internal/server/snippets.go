package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/michaelbrown/codetutor/internal/storage"
)

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	opts := storage.SnippetListOptions{
		Language:      r.URL.Query().Get("language"),
		FavoritesOnly: r.URL.Query().Get("favorites") == "true",
		Limit:         queryInt(r, "limit"),
		Offset:        queryInt(r, "offset"),
	}

	snippets, err := s.store.ListSnippets(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if snippets == nil {
		snippets = []storage.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippets)
}

type snippetRequest struct {
	Title       string `json:"title"`
	Language    string `json:"language"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (s *Server) validateSnippet(req snippetRequest) string {
	if req.Language == "" {
		return "language is required"
	}
	for _, id := range s.engine.SupportedLanguages() {
		if strings.EqualFold(id, req.Language) {
			return ""
		}
	}
	return "unsupported language: " + req.Language
}

func (s *Server) handleCreateSnippet(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if msg := s.validateSnippet(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sn := &storage.Snippet{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Language:    strings.ToLower(req.Language),
		Code:        req.Code,
		Description: req.Description,
	}

	if err := s.store.CreateSnippet(r.Context(), sn); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sn)
}

func (s *Server) handleGetSnippet(w http.ResponseWriter, r *http.Request) {
	sn, err := s.store.GetSnippet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) handleUpdateSnippet(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if msg := s.validateSnippet(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sn, err := s.store.GetSnippet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sn.Title = req.Title
	sn.Language = strings.ToLower(req.Language)
	sn.Code = req.Code
	sn.Description = req.Description
	if err := s.store.UpdateSnippet(r.Context(), sn); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSnippet(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	sn, err := s.store.ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) handleRunSnippet(w http.ResponseWriter, r *http.Request) {
	sn, err := s.store.GetSnippet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	res := s.execute(r.Context(), sn.Code, sn.Language, sn.ID)
	writeJSON(w, http.StatusOK, res)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "snippet not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
