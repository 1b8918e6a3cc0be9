// Package server hosts the HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/okquant/costsim/internal/domain"
	"github.com/okquant/costsim/internal/server/handler"
	"github.com/okquant/costsim/internal/server/middleware"
	"github.com/okquant/costsim/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow when a
	// limiter is provided. Zero disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Nil
// handlers are skipped so modes that run without a store or strategy
// engine simply lack those routes.
type Handlers struct {
	Health   *handler.HealthHandler
	Simulate *handler.SimulateHandler
	Estimate *handler.EstimateHandler
	ADV      *handler.ADVHandler
	Results  *handler.ResultsHandler
	Book     *handler.BookHandler
	Status   *handler.StatusHandler
}

// Server is the headless HTTP + WebSocket API for the simulator.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the
// middleware chain (rate limit, auth, logging, CORS) applied. limiter
// may be nil; rate limiting is then disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check; the auth and rate-limit middleware exempt it so
	// probes work without credentials.
	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}

	// Simulation endpoints.
	if handlers.Simulate != nil {
		mux.HandleFunc("POST /api/simulate", handlers.Simulate.Simulate)
	}
	if handlers.Estimate != nil {
		mux.HandleFunc("POST /api/estimate", handlers.Estimate.Estimate)
	}

	// Impact model tuning.
	if handlers.ADV != nil {
		mux.HandleFunc("PUT /api/adv/{symbol}", handlers.ADV.UpdateADV)
		mux.HandleFunc("GET /api/adv/{symbol}", handlers.ADV.GetADV)
	}

	// Stored results.
	if handlers.Results != nil {
		mux.HandleFunc("GET /api/results", handlers.Results.List)
		mux.HandleFunc("GET /api/results/{id}", handlers.Results.Get)
	}

	// Live book.
	if handlers.Book != nil {
		mux.HandleFunc("GET /api/book/{instId}", handlers.Book.Get)
	}

	// Operational state.
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.Status)
		mux.HandleFunc("GET /api/signals", handlers.Status.Signals)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
