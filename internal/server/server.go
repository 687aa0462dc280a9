// Package server provides the chi HTTP server and its middleware chain.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server wraps the router and the HTTP listener lifecycle.
type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

// Options configures the server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	Telemetry      bool
}

// New builds the middleware chain in order: request ID, structured
// logging, timeout, panic recovery, and optionally the OpenTelemetry
// HTTP instrumentation.
func New(opts Options, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if opts.RequestTimeout > 0 {
		r.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	r.Use(middleware.Recoverer)

	if opts.Telemetry {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "ai-gateway")
		})
	}

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}

// Run starts the listener and blocks until ctx is cancelled, then shuts
// down gracefully with a bounded drain period.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down server")
	return s.http.Shutdown(shutdownCtx)
}
