package ingest

import (
	"context"

	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
	"golang.org/x/sync/errgroup"
)

// Cooperative puts all remaining page requests in flight at once. Each page
// runs in its own goroutine; pages reach the accumulator through a single
// collecting goroutine.
type Cooperative struct {
	fetcher Fetcher
}

// NewCooperative creates a cooperative strategy.
func NewCooperative(f Fetcher) *Cooperative {
	return &Cooperative{fetcher: f}
}

func (s *Cooperative) Name() string { return "cooperative" }

func (s *Cooperative) Ingest(ctx context.Context, req Request) (*Result, error) {
	return run(ctx, s.Name(), s.fetcher, req, newLogger(), s.fetchRest)
}

func (s *Cooperative) fetchRest(ctx context.Context, req Request, pages int, coll *Collection) error {
	results := make(chan *pagination.Page)
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for page := range results {
			coll.Add(page.Items)
			pagesFetchedTotal.WithLabelValues(s.Name()).Inc()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for n := 2; n <= pages; n++ {
		g.Go(func() error {
			page, err := s.fetcher.FetchPage(gctx, req.page(n))
			if err != nil {
				return err
			}
			select {
			case results <- page:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	close(results)
	<-collected
	return err
}
