// Package config loads service and ingestion settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	// ServerConfig configures the measurements API.
	ServerConfig struct {
		Port                string        `env:"MEASUREMENTS_PORT" envDefault:"8000"`
		Seed                int64         `env:"MEASUREMENTS_SEED" envDefault:"42"`
		FailureRate         float64       `env:"MEASUREMENTS_FAILURE_RATE" envDefault:"0.3"`
		CursorSecret        string        `env:"MEASUREMENTS_CURSOR_SECRET"`
		ReadTimeout         time.Duration `env:"MEASUREMENTS_READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout        time.Duration `env:"MEASUREMENTS_WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout         time.Duration `env:"MEASUREMENTS_IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownGracePeriod time.Duration `env:"MEASUREMENTS_SHUTDOWN_GRACE" envDefault:"5s"`
		Log                 Log           `envPrefix:"MEASUREMENTS_"`
	}

	// IngestConfig configures the ingestion CLI.
	IngestConfig struct {
		BaseURL        string        `env:"INGEST_BASE_URL" envDefault:"http://localhost:8000"`
		Endpoint       string        `env:"INGEST_ENDPOINT" envDefault:"/measurements/very-reliable"`
		UserAgent      string        `env:"INGEST_USER_AGENT" envDefault:"measurement-ingest/0.1.0"`
		Strategy       string        `env:"INGEST_STRATEGY" envDefault:"parallel"`
		PageSize       int           `env:"INGEST_PAGE_SIZE" envDefault:"10"`
		Total          int           `env:"INGEST_TOTAL" envDefault:"100"`
		DeviceID       string        `env:"INGEST_DEVICE_ID"`
		MaxPages       int           `env:"INGEST_MAX_PAGES" envDefault:"0"`
		MaxWorkers     int           `env:"INGEST_MAX_WORKERS" envDefault:"5"`
		MaxAttempts    int           `env:"INGEST_MAX_ATTEMPTS" envDefault:"5"`
		InitialBackoff time.Duration `env:"INGEST_INITIAL_BACKOFF" envDefault:"500ms"`
		MaxBackoff     time.Duration `env:"INGEST_MAX_BACKOFF" envDefault:"10s"`
		RequestTimeout time.Duration `env:"INGEST_REQUEST_TIMEOUT" envDefault:"30s"`
		RedisURL       string        `env:"INGEST_REDIS_URL"`
		OutputDir      string        `env:"INGEST_OUTPUT_DIR" envDefault:"."`
		MetricsAddr    string        `env:"INGEST_METRICS_ADDR"`
		Log            Log           `envPrefix:"INGEST_"`
	}

	// Log holds logger settings shared by both binaries.
	Log struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
	}
)

// LoadServer parses ServerConfig from the environment.
func LoadServer() (ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return ServerConfig{}, fmt.Errorf("config error: failure rate must be within [0,1] (got %v)", cfg.FailureRate)
	}

	return *cfg, nil
}

// LoadIngest parses IngestConfig from the environment.
func LoadIngest() (IngestConfig, error) {
	cfg := &IngestConfig{}
	if err := env.Parse(cfg); err != nil {
		return IngestConfig{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		return IngestConfig{}, fmt.Errorf("config error: max attempts must be >= 1 (got %d)", cfg.MaxAttempts)
	}

	return *cfg, nil
}
