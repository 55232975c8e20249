package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/measurement-ingest/pkg/client"
	"github.com/Sternrassler/measurement-ingest/pkg/config"
	"github.com/Sternrassler/measurement-ingest/pkg/export"
	"github.com/Sternrassler/measurement-ingest/pkg/ingest"
	"github.com/Sternrassler/measurement-ingest/pkg/logging"
	"github.com/Sternrassler/measurement-ingest/pkg/metrics"
)

// errNotIdentical is returned by "all" when strategies disagree.
var errNotIdentical = errors.New("strategies returned different measurement sets")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("ingest failed")
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.LoadIngest()
	if err != nil {
		return err
	}

	logging.Setup(logging.FromConfig(cfg.Log))

	clientCfg, err := client.FromConfig(cfg)
	if err != nil {
		return err
	}
	if clientCfg.Redis != nil {
		defer clientCfg.Redis.Close()
		if err := clientCfg.Redis.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, page cache disabled")
			clientCfg.Redis = nil
		}
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr)
		defer stopMetrics()
	}

	req := ingest.Request{
		PageSize: cfg.PageSize,
		Total:    cfg.Total,
		DeviceID: cfg.DeviceID,
		MaxPages: cfg.MaxPages,
	}

	log.Info().
		Str("base_url", cfg.BaseURL).
		Str("endpoint", cfg.Endpoint).
		Str("strategy", cfg.Strategy).
		Int("page_size", req.PageSize).
		Int("total", req.Total).
		Msg("Starting ingestion")

	switch cfg.Strategy {
	case "all":
		return runBenchmark(ctx, stdout, c, cfg, req)
	case "cursor":
		result, err := ingest.FollowCursor(ctx, c, client.CursorRequest{
			Size:     cfg.PageSize,
			Total:    cfg.Total,
			DeviceID: cfg.DeviceID,
		})
		if err != nil {
			return err
		}
		return save(stdout, cfg.OutputDir, result)
	default:
		s, err := ingest.ByName(cfg.Strategy, c, cfg.MaxWorkers)
		if err != nil {
			return err
		}
		result, err := s.Ingest(ctx, req)
		if err != nil {
			return err
		}
		return save(stdout, cfg.OutputDir, result)
	}
}

func runBenchmark(ctx context.Context, stdout io.Writer, c *client.Client, cfg config.IngestConfig, req ingest.Request) error {
	report, err := ingest.Benchmark(ctx, ingest.All(c, cfg.MaxWorkers), req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tDURATION\tMEASUREMENTS\tPAGES\tATTEMPTS\tERROR")
	for _, r := range report.Runs {
		errText := "-"
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Strategy, r.Duration.Round(time.Millisecond), r.Measurements, r.Pages, r.Attempts, errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if best, ok := report.Fastest(); ok {
		fmt.Fprintf(stdout, "fastest: %s\n", best.Strategy)
	}
	for _, result := range report.Results() {
		if err := save(stdout, cfg.OutputDir, result); err != nil {
			return err
		}
	}

	if !report.Identical {
		return errNotIdentical
	}
	return nil
}

func save(stdout io.Writer, dir string, result *ingest.Result) error {
	path, err := export.SaveCSV(dir, "device_measurements_"+result.Strategy, result.Measurements)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: saved %d measurements to %s\n", result.Strategy, len(result.Measurements), path)
	return nil
}

// serveMetrics exposes /metrics on addr until the returned func is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", addr).Msg("Metrics listener failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
