// Package logging configures zerolog for the measurements API and the
// ingestion client.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/measurement-ingest/pkg/config"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: JSON).
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// FromConfig converts environment settings into a logger Config.
func FromConfig(cfg config.Log) Config {
	c := DefaultConfig()
	c.Level = LogLevel(cfg.Level)
	c.Pretty = cfg.Pretty
	return c
}

// Setup configures and installs the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

type requestIDKey struct{}

// WithRequestID stores a request id for later log enrichment.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Ctx returns logger enriched with the request id carried by ctx.
func Ctx(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id := RequestID(ctx); id != "" {
		return logger.With().Str("request_id", id).Logger()
	}
	return logger
}

// Log Level Guidelines:
//
// Debug: generator sizes, cursor decoding, each retry backoff, cache hit/miss
// Info: server startup/shutdown, ingestion start/finish, per-page progress
// Warn: injected failures, transient upstream errors, retry exhaustion
// Error: terminal ingestion failure, listener errors, panics recovered by middleware
//
// Context Fields:
//   - component: package-level component name
//   - request_id: per-request id set by the server middleware
//   - route, status, duration: HTTP request logging
//   - page, attempt, backoff, error_class: ingestion retry loop
//   - strategy: sequential, cooperative or parallel
