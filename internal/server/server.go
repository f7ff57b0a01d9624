// Package server exposes the marketplace over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/server/handler"
	"github.com/martelinho/martelinho/internal/server/middleware"
	"github.com/martelinho/martelinho/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // guards /api/admin; empty disables the check
	RateLimit       int    // mutating requests per caller per window; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Admin may be nil when no archive storage is configured.
type Handlers struct {
	Health   *handler.HealthHandler
	Listings *handler.ListingHandler
	Users    *handler.UserHandler
	Admin    *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter and wsHub
// may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/categories", handler.Categories)
	mux.HandleFunc("GET /api/fees", handler.Fees)

	// Session and profiles.
	mux.HandleFunc("POST /api/session", handlers.Users.Login)
	mux.HandleFunc("GET /api/users/{id}", handlers.Users.GetUser)
	mux.HandleFunc("PUT /api/users/{id}/name", handlers.Users.Rename)
	mux.HandleFunc("GET /api/users/{id}/listings", handlers.Users.ListOwned)
	mux.HandleFunc("GET /api/users/{id}/won", handlers.Users.ListWon)

	// Listings.
	l := handlers.Listings
	mux.HandleFunc("GET /api/listings", l.ListListings)
	mux.HandleFunc("POST /api/listings", l.CreateListing)
	mux.HandleFunc("POST /api/listings/suggest", l.SuggestCopy)
	mux.HandleFunc("GET /api/live", l.ListLive)
	mux.HandleFunc("GET /api/listings/{id}", l.GetListing)
	mux.HandleFunc("GET /api/listings/{id}/history", l.History)
	mux.HandleFunc("GET /api/listings/{id}/live-script", l.LiveScript)
	mux.HandleFunc("GET /api/listings/{id}/swap-candidates", l.SwapCandidates)
	mux.HandleFunc("POST /api/listings/{id}/bids", l.PlaceBid)
	mux.HandleFunc("POST /api/listings/{id}/swaps", l.ProposeSwap)
	mux.HandleFunc("POST /api/listings/{id}/swaps/{offerID}/accept", l.AcceptSwap)
	mux.HandleFunc("POST /api/listings/{id}/swap-fee", l.PaySwapFee)
	mux.HandleFunc("POST /api/listings/{id}/messages", l.SendMessage)
	mux.HandleFunc("POST /api/listings/{id}/cancel", l.Cancel)
	mux.HandleFunc("POST /api/listings/{id}/payment", l.RecordPayment)
	mux.HandleFunc("POST /api/listings/{id}/delivery", l.ConfirmDelivery)
	mux.HandleFunc("POST /api/listings/{id}/dispute", l.OpenDispute)
	mux.HandleFunc("POST /api/listings/{id}/live", l.SetLive)

	// Operator endpoints.
	if handlers.Admin != nil {
		admin := middleware.Auth(cfg.APIKey)
		mux.Handle("POST /api/admin/archive", admin(http.HandlerFunc(handlers.Admin.Archive)))
		mux.Handle("POST /api/admin/export", admin(http.HandlerFunc(handlers.Admin.Export)))
		mux.Handle("GET /api/admin/exports", admin(http.HandlerFunc(handlers.Admin.Exports)))
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Outermost last: CORS, Actor, Logging, RateLimit.
	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.Actor()(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
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
