// Package web provides the operations HTTP server of the ingestor: health,
// run triggers, the last run summary and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/landingzone/internal/config"
	"github.com/JonMunkholm/landingzone/internal/ingest"
	"github.com/JonMunkholm/landingzone/internal/metrics"
	"github.com/JonMunkholm/landingzone/internal/web/middleware"
)

// Server is the operations HTTP server.
type Server struct {
	cfg     config.ServerConfig
	runner  *ingest.Runner
	metrics *metrics.Metrics
	router  *chi.Mux
	server  *http.Server

	// runCtx parents runs started over HTTP so they outlive the request.
	runCtx context.Context
}

// NewServer creates a Server. Runs triggered over HTTP are bound to runCtx.
func NewServer(runCtx context.Context, cfg config.ServerConfig, runner *ingest.Runner, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		metrics: m,
		router:  chi.NewRouter(),
		runCtx:  runCtx,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(30 * time.Second))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/runs", func(r chi.Router) {
		r.Get("/active", s.handleActiveRun)
		r.Get("/last", s.handleLastRun)
		r.With(middleware.APIKeyAuth(s.cfg.APIKeys)).Post("/", s.handleStartRun)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.cfg.Addr(),
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
		IdleTimeout: s.cfg.IdleTimeout,
	}

	slog.Info("ops server listening", "addr", s.cfg.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
