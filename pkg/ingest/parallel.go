package ingest

import (
	"context"

	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the pool size used when none is given.
const DefaultWorkers = 5

// Parallel fetches pages with a fixed-size worker pool fed from a page queue.
type Parallel struct {
	fetcher Fetcher
	workers int
	logger  zerolog.Logger
}

// NewParallel creates a worker-pool strategy. workers <= 0 means DefaultWorkers.
func NewParallel(f Fetcher, workers int) *Parallel {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Parallel{
		fetcher: f,
		workers: workers,
		logger:  newLogger(),
	}
}

func (s *Parallel) Name() string { return "parallel" }

// Workers returns the pool size.
func (s *Parallel) Workers() int { return s.workers }

func (s *Parallel) Ingest(ctx context.Context, req Request) (*Result, error) {
	return run(ctx, s.Name(), s.fetcher, req, s.logger, s.fetchRest)
}

func (s *Parallel) fetchRest(ctx context.Context, req Request, pages int, coll *Collection) error {
	pageQueue := make(chan int)
	results := make(chan *pagination.Page, s.workers)
	collected := make(chan struct{})

	// Collect results
	go func() {
		defer close(collected)
		fetched := 1
		for page := range results {
			coll.Add(page.Items)
			pagesFetchedTotal.WithLabelValues(s.Name()).Inc()
			fetched++

			if fetched%50 == 0 {
				s.logger.Info().
					Int("fetched", fetched).
					Int("total", pages).
					Float64("progress_pct", float64(fetched)/float64(pages)*100).
					Msg("Fetch progress")
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// Fill page queue (page 1 already fetched)
	g.Go(func() error {
		defer close(pageQueue)
		for n := 2; n <= pages; n++ {
			select {
			case pageQueue <- n:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			return s.worker(gctx, req, pageQueue, results, i)
		})
	}

	err := g.Wait()
	close(results)
	<-collected
	return err
}

// worker processes pages from the queue until it drains or a page fails.
func (s *Parallel) worker(ctx context.Context, req Request, pageQueue <-chan int, results chan<- *pagination.Page, workerID int) error {
	pagesProcessed := 0

	for pageNum := range pageQueue {
		page, err := s.fetcher.FetchPage(ctx, req.page(pageNum))
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")
			return err
		}

		select {
		case results <- page:
		case <-ctx.Done():
			s.logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled after fetch)")
			return ctx.Err()
		}

		pagesProcessed++
	}

	if pagesProcessed > 0 {
		s.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
	return nil
}
