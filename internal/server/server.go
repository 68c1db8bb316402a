// Package server exposes the round, odds and bet API over HTTP plus a
// WebSocket feed of round events.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/server/handler"
	"github.com/alanyoungcy/roundoracle/internal/server/middleware"
	"github.com/alanyoungcy/roundoracle/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	APIKey             string // if empty, authentication is disabled
	RateLimitPerMinute int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Snapshots may be nil when the archive is disabled.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Markets   *handler.MarketHandler
	Rounds    *handler.RoundHandler
	Positions *handler.PositionHandler
	Scheduler *handler.SchedulerHandler
	Snapshots *handler.SnapshotHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limit, auth, logging, CORS) and attaches the
// WebSocket hub when one is given. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Markets and rounds.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/rounds/{round}", handlers.Rounds.GetRound)
	mux.HandleFunc("GET /api/markets/{id}/rounds/{round}/outcomes", handlers.Rounds.ListOutcomes)
	mux.HandleFunc("GET /api/markets/{id}/rounds/{round}/odds", handlers.Rounds.GetOdds)

	// Bets and positions.
	mux.HandleFunc("POST /api/markets/{id}/rounds/{round}/bets", handlers.Positions.PlaceBet)
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)

	// Scheduler trigger.
	mux.HandleFunc("POST /api/scheduler/trigger", handlers.Scheduler.TriggerTick)

	// Crawl snapshot archive.
	if handlers.Snapshots != nil {
		mux.HandleFunc("GET /api/markets/{id}/snapshots", handlers.Snapshots.ListSnapshots)
		mux.HandleFunc("GET /api/markets/{id}/snapshots/{ts}", handlers.Snapshots.GetSnapshot)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute)(h)
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
