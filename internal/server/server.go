package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/michaelbrown/codetutor/internal/config"
	"github.com/michaelbrown/codetutor/internal/events"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/limiter"
	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/storage"
)

// Executor is the part of executor.Engine the server depends on.
type Executor interface {
	Execute(ctx context.Context, code, lang string, opts ...executor.RunOption) executor.Result
	SupportedLanguages() []string
	AnalyzeLineByLine(code, lang string) []string
}

// Server is the HTTP server for the codetutor API.
type Server struct {
	cfg       *config.Config
	engine    Executor
	store     storage.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	limiter   *limiter.RateLimiter
	conns     *ConnManager
	logger    zerolog.Logger
	router    chi.Router
	http      *http.Server
	running   inflight

	publishTimeout time.Duration
	drainTimeout   time.Duration
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPublisher sends an event for every finished execution.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithMetrics counts rate-limit rejections and in-flight executions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDrainTimeout bounds how long Shutdown waits for running executions.
// It should exceed the engine timeout so every child is reaped.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// New creates a new Server.
func New(cfg *config.Config, engine Executor, store storage.Store, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		store:     store,
		publisher: events.Nop{},
		conns:     NewConnManager(),
		logger:    zerolog.Nop(),
		router:    chi.NewRouter(),

		publishTimeout: 2 * time.Second,
		drainTimeout:   executor.DefaultTimeout + 5*time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	rl := cfg.Server.RateLimit
	s.limiter = limiter.New(limiter.Config{
		GlobalRPS:     rl.RPS * 10,
		ClientRPS:     rl.RPS,
		ClientBurst:   rl.Burst,
		MaxConcurrent: rl.MaxConcurrent,
	})
	if s.metrics != nil {
		s.limiter.OnReject = s.metrics.RateLimited
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// WebSocket (no JSON content-type)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)

			r.Get("/languages", s.handleLanguages)
			r.Post("/analyze", s.handleAnalyze)

			// Execution endpoints share the rate limiter
			r.With(s.limiter.Middleware).Post("/execute", s.handleExecute)
			r.With(s.limiter.Middleware).Post("/snippets/{id}/run", s.handleRunSnippet)

			// Snippets
			r.Get("/snippets", s.handleListSnippets)
			r.Post("/snippets", s.handleCreateSnippet)
			r.Get("/snippets/{id}", s.handleGetSnippet)
			r.Put("/snippets/{id}", s.handleUpdateSnippet)
			r.Delete("/snippets/{id}", s.handleDeleteSnippet)
			r.Post("/snippets/{id}/favorite", s.handleToggleFavorite)

			// History
			r.Get("/executions", s.handleListExecutions)
			r.Get("/stats", s.handleStats)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.http.RegisterOnShutdown(cancel)
	s.limiter.StartCleanup(ctx, 5*time.Minute, 10*time.Minute)

	s.logger.Info().Str("addr", addr).Msgf("codetutor server starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting executions, waits for running ones to finish and
// then closes listeners and websocket clients. Hijacked websocket connections
// are not tracked by http.Server, so their runs are waited on separately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")
	s.running.stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.drainTimeout)
	defer cancel()

	var err error
	if s.http != nil {
		err = s.http.Shutdown(shutdownCtx)
	}
	if werr := s.running.wait(shutdownCtx); werr != nil {
		s.logger.Warn().Err(werr).Msg("executions still running at shutdown")
		if err == nil {
			err = werr
		}
	}
	s.conns.CloseAll()
	return err
}

// inflight counts running executions. After stop it refuses new ones.
type inflight struct {
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func (f *inflight) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) done() {
	f.wg.Done()
}

func (f *inflight) stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

// wait blocks until every begun execution is done or ctx expires.
func (f *inflight) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
