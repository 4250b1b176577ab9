// Package api exposes the analysis engine over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codescope/internal/engine"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr string
	// Root is the project analyzed when a request names no path; relative
	// request paths are resolved against it.
	Root string
	// WriteTimeout bounds a whole analysis, so it is far longer than the read side.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the settings used by `codescope serve`.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:7420",
		Root:         ".",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}
}

// Server represents the HTTP API server
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	cfg     Config
	logger  *slog.Logger
	engine  *engine.Engine
	started time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(eng *engine.Engine, logger *slog.Logger, cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		engine:  eng,
		router:  http.NewServeMux(),
		started: time.Now(),
	}

	s.registerRoutes()

	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.cfg.Addr, "root", s.cfg.Root)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully")
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}
