package pagination

import (
	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
)

// Page is a page-based slice of a generated sequence.
type Page struct {
	Items []measurement.Measurement `json:"items"`
	Total int                       `json:"total"`
	Page  int                       `json:"page"`
	Size  int                       `json:"size"`
	Pages int                       `json:"pages"`
}

// PageCount returns the number of pages of the given size needed for total items.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Unpaginated returns at most count items from the head of items.
func Unpaginated(items []measurement.Measurement, count int) []measurement.Measurement {
	count = CountBounds.Clamp(count)
	if count > len(items) {
		count = len(items)
	}
	return items[:count]
}

// Paginate returns the page-th slice of size items. A page past the end
// yields an empty item list, not an error.
func Paginate(items []measurement.Measurement, page, size int) Page {
	page = PageBounds.Clamp(page)
	size = SizeBounds.Clamp(size)
	total := len(items)

	result := Page{
		Items: []measurement.Measurement{},
		Total: total,
		Page:  page,
		Size:  size,
		Pages: PageCount(total, size),
	}

	// Compare page numbers first; (page-1)*size overflows for huge pages.
	if page > result.Pages {
		return result
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	result.Items = items[start:end]

	return result
}
