package ingest

import (
	"context"
)

// Sequential fetches one page at a time, retrying each before advancing.
type Sequential struct {
	fetcher Fetcher
}

// NewSequential creates a sequential strategy.
func NewSequential(f Fetcher) *Sequential {
	return &Sequential{fetcher: f}
}

func (s *Sequential) Name() string { return "sequential" }

func (s *Sequential) Ingest(ctx context.Context, req Request) (*Result, error) {
	return run(ctx, s.Name(), s.fetcher, req, newLogger(), s.fetchRest)
}

func (s *Sequential) fetchRest(ctx context.Context, req Request, pages int, coll *Collection) error {
	for n := 2; n <= pages; n++ {
		page, err := s.fetcher.FetchPage(ctx, req.page(n))
		if err != nil {
			return err
		}
		coll.Add(page.Items)
		pagesFetchedTotal.WithLabelValues(s.Name()).Inc()
	}
	return nil
}
