package ingest

import (
	"context"
	"time"
)

// Run is one strategy's outcome within a Benchmark.
type Run struct {
	Strategy     string
	Duration     time.Duration
	Measurements int
	Pages        int
	Attempts     int64
	Err          error
}

// Report compares strategies run over the same request.
type Report struct {
	Runs []Run

	// Identical is true when every run succeeded with the same ID set.
	Identical bool

	results []*Result
}

// Results returns the successful results in run order.
func (r *Report) Results() []*Result {
	return r.results
}

// Fastest returns the quickest successful run, if any.
func (r *Report) Fastest() (Run, bool) {
	var best Run
	found := false
	for _, run := range r.Runs {
		if run.Err != nil {
			continue
		}
		if !found || run.Duration < best.Duration {
			best = run
			found = true
		}
	}
	return best, found
}

// Benchmark runs each strategy in turn over req. Strategy failures are
// recorded in the report rather than returned; only a cancelled ctx stops it early.
func Benchmark(ctx context.Context, strategies []Strategy, req Request) (*Report, error) {
	logger := newLogger()
	report := &Report{Identical: len(strategies) > 0}

	var reference map[string]bool
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := s.Ingest(ctx, req)
		run := Run{Strategy: s.Name(), Err: err}
		if err != nil {
			report.Identical = false
			logger.Warn().Err(err).Str("strategy", s.Name()).Msg("Benchmark run failed")
			report.Runs = append(report.Runs, run)
			continue
		}

		run.Duration = result.Duration
		run.Measurements = len(result.Measurements)
		run.Pages = result.Pages
		run.Attempts = result.Attempts
		report.Runs = append(report.Runs, run)
		report.results = append(report.results, result)

		ids := make(map[string]bool, len(result.Measurements))
		for _, m := range result.Measurements {
			ids[m.ID] = true
		}
		if reference == nil {
			reference = ids
		} else if !sameKeys(reference, ids) {
			report.Identical = false
		}

		logger.Info().
			Str("strategy", run.Strategy).
			Dur("duration", run.Duration).
			Int("measurements", run.Measurements).
			Int64("attempts", run.Attempts).
			Msg("Benchmark run")
	}

	return report, nil
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
