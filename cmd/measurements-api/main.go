package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/measurement-ingest/pkg/config"
	"github.com/Sternrassler/measurement-ingest/pkg/logging"
	"github.com/Sternrassler/measurement-ingest/pkg/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("measurements-api failed")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	logging.Setup(logging.FromConfig(cfg.Log))

	srv, err := server.New(server.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	log.Info().
		Int64("seed", cfg.Seed).
		Float64("failure_rate", cfg.FailureRate).
		Bool("fixed_cursor_secret", cfg.CursorSecret != "").
		Msg("Configuration loaded")

	return srv.ListenAndServe(ctx, cfg)
}
