package ingest

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
)

// Collection accumulates measurements keyed by ID. Safe for concurrent use.
type Collection struct {
	mu   sync.Mutex
	byID map[string]measurement.Measurement
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{byID: make(map[string]measurement.Measurement)}
}

// Add inserts items and returns how many were new.
func (c *Collection) Add(items []measurement.Measurement) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, m := range items {
		if _, ok := c.byID[m.ID]; ok {
			continue
		}
		c.byID[m.ID] = m
		added++
	}
	return added
}

// Len returns the number of unique measurements.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// Measurements returns the contents newest first, ties broken by ID.
func (c *Collection) Measurements() []measurement.Measurement {
	c.mu.Lock()
	out := make([]measurement.Measurement, 0, len(c.byID))
	for _, m := range c.byID {
		out = append(out, m)
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b measurement.Measurement) int {
		if d := b.Timestamp.Compare(a.Timestamp); d != 0 {
			return d
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
