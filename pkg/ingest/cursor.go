package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/measurement-ingest/pkg/client"
	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
)

// ErrCursorLoop is returned when the API hands back a cursor already followed.
var ErrCursorLoop = errors.New("cursor loop")

// CursorFetcher fetches one cursor window. *client.Client implements it.
type CursorFetcher interface {
	FetchCursor(ctx context.Context, req client.CursorRequest) (*pagination.CursorPage, error)
}

// FollowCursor walks the cursor endpoint from req.After (empty for the
// start) until next_page is null, deduplicating by ID. An unfiltered walk
// from the start must collect the whole clamped total or it returns
// ErrIncomplete.
func FollowCursor(ctx context.Context, f CursorFetcher, req client.CursorRequest) (*Result, error) {
	const name = "cursor"
	logger := newLogger()
	start := time.Now()

	var attemptsBefore int64
	counter, counts := f.(attemptCounter)
	if counts {
		attemptsBefore = counter.Attempts()
	}

	resumed := req.After != ""
	coll := NewCollection()
	followed := map[string]bool{}
	pages := 0

	for {
		page, err := f.FetchCursor(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		pages++
		pagesFetchedTotal.WithLabelValues(name).Inc()
		coll.Add(page.Items)

		if page.NextPage == nil {
			break
		}
		next := *page.NextPage
		if followed[next] {
			return nil, fmt.Errorf("%s: %w: %q after %d pages", name, ErrCursorLoop, next, pages)
		}
		followed[next] = true
		req.After = next

		logger.Debug().Int("pages", pages).Int("collected", coll.Len()).Msg("Following cursor")
	}

	if req.DeviceID == "" && !resumed {
		if expected := pagination.TotalBounds.Clamp(req.Total); coll.Len() != expected {
			return nil, fmt.Errorf("%s: %w: got %d of %d measurements", name, ErrIncomplete, coll.Len(), expected)
		}
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
		Int("measurements", len(result.Measurements)).
		Int("pages", pages).
		Dur("duration", result.Duration).
		Msg("Cursor walk complete")

	return result, nil
}
