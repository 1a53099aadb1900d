// Package server assembles the HTTP and WebSocket surface of the veilbet
// engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veilbet/veilbet/internal/server/handler"
	"github.com/veilbet/veilbet/internal/server/middleware"
	"github.com/veilbet/veilbet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Wagers    *handler.WagerHandler
	Positions *handler.PositionHandler
	Payouts   *handler.PayoutHandler
	Balances  *handler.BalanceHandler
}

// Server is the HTTP + WebSocket API server for the presentation layer.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/balance", handlers.Balances.GetBalance)
	mux.HandleFunc("POST /api/balance/refresh", handlers.Balances.RefreshBalance)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/refresh", handlers.Markets.RefreshSnapshot)

	mux.HandleFunc("GET /api/markets/{id}/quote", handlers.Wagers.QuoteWager)
	mux.HandleFunc("POST /api/markets/{id}/wagers", handlers.Wagers.PlaceWager)
	mux.HandleFunc("POST /api/markets/{id}/reveal", handlers.Wagers.Reveal)

	mux.HandleFunc("GET /api/markets/{id}/wagers", handlers.Positions.ListWagers)
	mux.HandleFunc("GET /api/markets/{id}/positions", handlers.Positions.ListPositions)

	mux.HandleFunc("GET /api/markets/{id}/payout", handlers.Payouts.GetStatus)
	mux.HandleFunc("POST /api/markets/{id}/payout/request", handlers.Payouts.RequestPayout)
	mux.HandleFunc("POST /api/markets/{id}/payout/claim", handlers.Payouts.ClaimPayout)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
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
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
