// Package api exposes a thin read-only query surface: an order's
// current status and the best bid/ask for a token set. It is
// deliberately minimal — request validation, pagination, and
// step-sequence assembly belong to an outer HTTP framework layer this
// package does not provide — but it follows a Server{Start, Stop}
// lifecycle with graceful shutdown, routed through chi.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nftindexer/indexer/internal/config"
)

// Server runs the query API's HTTP listener.
type Server struct {
	cfg      config.APIConfig
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds the query API server and its routes.
func NewServer(cfg config.APIConfig, store Store, logger *slog.Logger) *Server {
	handlers := NewHandlers(store, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", handlers.HandleHealth)
	r.Get("/orders/{hash}", handlers.HandleOrderStatus)
	r.Get("/makers/{maker}/orders", handlers.HandleOrdersByMaker)
	r.Get("/tokensets/{tokenSetID}/best-bid", handlers.HandleBestBid)
	r.Get("/tokensets/{tokenSetID}/best-ask", handlers.HandleBestAsk)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		handlers: handlers,
		server:   httpServer,
		logger:   logger.With("component", "api.server"),
	}
}

// Start blocks serving HTTP until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("query api starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("query api stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
