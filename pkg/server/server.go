// Package server exposes the synthetic measurement generator over HTTP.
//
// Every request regenerates its dataset from the configured seed, so the
// service keeps no state between requests beyond the failure injector's
// PRNG and can be replicated freely.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/measurement-ingest/pkg/config"
	"github.com/Sternrassler/measurement-ingest/pkg/logging"
	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
	"github.com/Sternrassler/measurement-ingest/pkg/metrics"
	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
)

// Options configures a Server.
type Options struct {
	// Seed fixes the generated dataset.
	Seed int64

	// CursorSecret signs cursors. Empty means a random per-process secret.
	CursorSecret []byte

	// Injector decides failures of the unreliable endpoint.
	// Defaults to a RandomInjector with FailureRate.
	Injector    FailureInjector
	FailureRate float64
}

// DefaultOptions mirrors the environment defaults.
func DefaultOptions() Options {
	return Options{
		Seed:        42,
		FailureRate: 0.3,
	}
}

// OptionsFromConfig builds Options from environment settings.
func OptionsFromConfig(cfg config.ServerConfig) Options {
	return Options{
		Seed:         cfg.Seed,
		CursorSecret: []byte(cfg.CursorSecret),
		FailureRate:  cfg.FailureRate,
	}
}

// Server serves the measurement endpoints.
type Server struct {
	generator *measurement.Generator
	cursors   *pagination.CursorCodec
	injector  FailureInjector
	logger    zerolog.Logger
	router    http.Handler
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Injector == nil {
		if opts.FailureRate < 0 || opts.FailureRate > 1 {
			return nil, fmt.Errorf("failure rate must be within [0,1] (got %v)", opts.FailureRate)
		}
		opts.Injector = NewRandomInjector(opts.FailureRate)
	}

	codec, err := pagination.NewCursorCodec(opts.CursorSecret)
	if err != nil {
		return nil, fmt.Errorf("cursor codec: %w", err)
	}

	s := &Server{
		generator: measurement.NewGenerator(opts.Seed),
		cursors:   codec,
		injector:  opts.Injector,
		logger:    logging.NewLogger("measurements-api"),
	}
	s.router = s.buildRouter()

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.observeMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/measurements", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/page", s.handlePage)
		r.Get("/page-with-links", s.handlePageWithLinks)
		r.Get("/cursor", s.handleCursor)
		r.Get("/very-reliable", s.handleUnreliable)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no route for "+r.URL.Path)
	})

	return r
}

// ListenAndServe runs an HTTP server until ctx is cancelled, then shuts it
// down gracefully within cfg.ShutdownGracePeriod.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", httpServer.Addr).Msg("Starting measurements API")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	grace := cfg.ShutdownGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	s.logger.Info().Msg("Shutting down measurements API")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
