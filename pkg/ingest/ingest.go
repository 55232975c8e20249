// Package ingest drains a paginated measurements endpoint into a
// deduplicated collection using one of three interchangeable strategies.
//
// Every strategy fetches page 1 first to learn the page count, then fetches
// the remaining pages its own way:
//
//   - Sequential issues one request at a time.
//   - Cooperative puts every remaining page in flight at once, one goroutine
//     per page, and funnels results to a single collecting goroutine.
//   - Parallel runs a fixed-size worker pool that pulls page numbers from a queue.
//
// All three share the caller's Fetcher and therefore its retry policy. A run
// returns exactly the expected unique measurements or an error.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/measurement-ingest/pkg/client"
	"github.com/Sternrassler/measurement-ingest/pkg/logging"
	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_pages_fetched_total",
	Help: "Total pages fetched by ingestion strategy",
}, []string{"strategy"})

// ErrIncomplete is returned when a run ends with fewer unique measurements
// than the API reported.
var ErrIncomplete = errors.New("incomplete ingestion")

// Fetcher fetches a single page. *client.Client implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, req client.PageRequest) (*pagination.Page, error)
}

// attemptCounter is implemented by fetchers that count HTTP attempts.
type attemptCounter interface {
	Attempts() int64
}

// Request describes one ingestion run.
type Request struct {
	PageSize int
	Total    int
	DeviceID string

	// MaxPages limits the run to the first MaxPages pages; 0 means all.
	MaxPages int
}

// Validate rejects requests the API would silently reinterpret.
func (r Request) Validate() error {
	if r.PageSize < 1 {
		return fmt.Errorf("page size must be >= 1 (got %d)", r.PageSize)
	}
	if r.Total < 1 {
		return fmt.Errorf("total must be >= 1 (got %d)", r.Total)
	}
	if r.MaxPages < 0 {
		return fmt.Errorf("max pages must be >= 0 (got %d)", r.MaxPages)
	}
	return nil
}

func (r Request) page(n int) client.PageRequest {
	return client.PageRequest{
		Page:     n,
		Size:     r.PageSize,
		Total:    r.Total,
		DeviceID: r.DeviceID,
	}
}

// Result is the outcome of a successful run.
type Result struct {
	Strategy     string
	Measurements []measurement.Measurement
	Pages        int

	// Attempts counts HTTP attempts including retries, when the fetcher reports them.
	Attempts int64
	Duration time.Duration
}

// Strategy is one way of draining the paginated endpoint.
type Strategy interface {
	Name() string
	Ingest(ctx context.Context, req Request) (*Result, error)
}

// fetchRestFunc fetches pages 2..pages into coll.
type fetchRestFunc func(ctx context.Context, req Request, pages int, coll *Collection) error

// run holds the steps every strategy shares: the first page, completeness
// checking and the result.
func run(ctx context.Context, name string, f Fetcher, req Request, logger zerolog.Logger, fetchRest fetchRestFunc) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid request: %w", name, err)
	}

	start := time.Now()
	var attemptsBefore int64
	counter, counts := f.(attemptCounter)
	if counts {
		attemptsBefore = counter.Attempts()
	}

	first, err := f.FetchPage(ctx, req.page(1))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to fetch first page: %w", name, err)
	}
	pagesFetchedTotal.WithLabelValues(name).Inc()

	pages := first.Pages
	if req.MaxPages > 0 && req.MaxPages < pages {
		pages = req.MaxPages
	}
	expected := min(first.Total, pages*first.Size)

	logger.Info().
		Str("strategy", name).
		Int("total", first.Total).
		Int("pages", pages).
		Int("page_size", first.Size).
		Msg("Starting ingestion")

	coll := NewCollection()
	coll.Add(first.Items)

	if pages > 1 {
		// the server may have clamped the size; follow its echo
		req.PageSize = first.Size
		if err := fetchRest(ctx, req, pages, coll); err != nil {
			logger.Warn().
				Err(err).
				Str("strategy", name).
				Int("collected", coll.Len()).
				Int("expected", expected).
				Msg("Ingestion aborted")
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	if coll.Len() != expected {
		return nil, fmt.Errorf("%s: %w: got %d of %d measurements", name, ErrIncomplete, coll.Len(), expected)
	}

	result := &Result{
		Strategy:     name,
		Measurements: coll.Measurements(),
		Pages:        pages,
		Duration:     time.Since(start),
	}
	if counts {
		result.Attempts = counter.Attempts() - attemptsBefore
	}

	logger.Info().
		Str("strategy", name).
		Int("measurements", len(result.Measurements)).
		Int("pages", pages).
		Int64("attempts", result.Attempts).
		Dur("duration", result.Duration).
		Msg("Ingestion complete")

	return result, nil
}

// Names lists the strategy names accepted by ByName.
func Names() []string {
	return []string{"sequential", "cooperative", "parallel"}
}

// ByName returns the named strategy. workers only applies to "parallel".
func ByName(name string, f Fetcher, workers int) (Strategy, error) {
	switch name {
	case "sequential":
		return NewSequential(f), nil
	case "cooperative":
		return NewCooperative(f), nil
	case "parallel":
		return NewParallel(f, workers), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// All returns every strategy over the same fetcher.
func All(f Fetcher, workers int) []Strategy {
	return []Strategy{NewSequential(f), NewCooperative(f), NewParallel(f, workers)}
}

func newLogger() zerolog.Logger {
	return logging.NewLogger("ingest")
}
