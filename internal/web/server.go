// Package web serves the operational endpoints that run alongside a
// pipeline run: liveness, live run status and prometheus metrics.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/phenix995/ai-instagram-organizer/internal/governor"
)

// Status is the live view of a pipeline run.
type Status struct {
	Phase     string            `json:"phase"`
	Current   int               `json:"current"`
	Total     int               `json:"total"`
	PhotoID   string            `json:"photo_id,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Governor  governor.Snapshot `json:"governor"`
}

// StatusFunc returns the current run status. The pipeline's progress
// tracker provides one.
type StatusFunc func() Status

// Server is the status HTTP server.
type Server struct {
	log        zerolog.Logger
	router     *chi.Mux
	httpServer *http.Server
	status     StatusFunc
}

// NewServer creates the status server. status may be nil, in which
// case the status endpoint reports that no run is in progress.
func NewServer(logger zerolog.Logger, addr string, status StatusFunc) *Server {
	r := chi.NewRouter()

	s := &Server{
		log:    logger.With().Str("component", "web").Logger(),
		router: r,
		status: status,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting status server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start status server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down status server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
