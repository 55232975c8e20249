package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts pages found in Redis, by endpoint
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cache_hits_total",
			Help: "Total number of page cache hits",
		},
		[]string{"endpoint"},
	)

	// CacheMisses counts lookups that fell through to the API, by endpoint
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cache_misses_total",
			Help: "Total number of page cache misses",
		},
		[]string{"endpoint"},
	)

	// NotModifiedResponses tracks 304 responses served from cache
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_304_responses_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
