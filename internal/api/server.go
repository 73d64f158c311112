// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/newthinker/papertrader/internal/api/handler/api"
	"github.com/newthinker/papertrader/internal/api/middleware"
	"github.com/newthinker/papertrader/internal/api/response"
	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/metrics"
)

// Server represents the HTTP server for the replay simulator
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
	// AllowedOrigins are extra browser origins admitted to event streams.
	AllowedOrigins []string
}

// Dependencies holds the components the routes are served from.
// Metrics may be nil.
type Dependencies struct {
	App     *app.App
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	var h http.Handler = mux
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth(deps.App))

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	v1 := http.NewServeMux()

	sims := handler.NewSimulationsHandler(deps.App)
	v1.HandleFunc("POST /api/v1/simulations", sims.Create)
	v1.HandleFunc("GET /api/v1/simulations", sims.List)
	v1.HandleFunc("GET /api/v1/simulations/{id}", sims.Get)
	v1.HandleFunc("DELETE /api/v1/simulations/{id}", sims.Delete)
	v1.HandleFunc("GET /api/v1/simulations/{id}/bars", sims.Bars)
	v1.HandleFunc("POST /api/v1/simulations/{id}/trades", sims.Trade)
	v1.HandleFunc("POST /api/v1/simulations/{id}/pause", sims.Pause)
	v1.HandleFunc("POST /api/v1/simulations/{id}/resume", sims.Resume)
	v1.HandleFunc("POST /api/v1/simulations/{id}/abandon", sims.Abandon)
	v1.HandleFunc("POST /api/v1/simulations/{id}/complete", sims.Complete)
	v1.HandleFunc("GET /api/v1/simulations/{id}/result", sims.Result)
	v1.HandleFunc("POST /api/v1/simulations/{id}/review", sims.Review)

	events := handler.NewEventsHandler(deps.App, deps.App.Events(), deps.Metrics, s.logger, cfg.AllowedOrigins)
	v1.HandleFunc("GET /api/v1/simulations/{id}/events", events.Stream)

	var store handler.JournalStore
	if j := deps.App.Journal(); j != nil {
		store = j
	}
	journal := handler.NewJournalHandler(store)
	v1.HandleFunc("POST /api/v1/journal/trades", handler.RequireJournal(store, journal.Create))
	v1.HandleFunc("GET /api/v1/journal/trades", handler.RequireJournal(store, journal.List))
	v1.HandleFunc("PUT /api/v1/journal/trades/{id}", handler.RequireJournal(store, journal.Update))
	v1.HandleFunc("DELETE /api/v1/journal/trades/{id}", handler.RequireJournal(store, journal.Delete))
	v1.HandleFunc("GET /api/v1/journal/positions/{symbol}", handler.RequireJournal(store, journal.Position))
	v1.HandleFunc("GET /api/v1/journal/style", handler.RequireJournal(store, journal.Style))
	v1.HandleFunc("GET /api/v1/journal/export", handler.RequireJournal(store, journal.Export))

	s.mux.Handle("/api/v1/", middleware.APIKeyAuth(cfg.APIKey)(v1))
}

// Handler returns the root handler with logging and metrics applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"review":  a.ReviewEnabled(),
			"journal": a.Journal() != nil,
		})
	}
}
