// Package metrics exposes the Prometheus registry shared by the API server
// and the ingestion client. Metrics are defined in their own packages
// (server, client, cache, ingest) and registered there via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry holds.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// API Server Metrics (pkg/server):
//   - measurements_http_requests_total{route, status} (Counter): Requests by route pattern and HTTP status
//   - measurements_http_request_duration_seconds{route} (Histogram): Request duration by route
//   - measurements_injected_failures_total (Counter): Simulated 500s from /measurements/very-reliable
//   - measurements_generated_total (Counter): Measurements synthesized
//
// Request Metrics (pkg/client):
//   - ingest_requests_total{endpoint, status} (Counter): Attempts by endpoint and HTTP status
//   - ingest_request_duration_seconds{endpoint} (Histogram): Attempt duration by endpoint
//   - ingest_errors_total{class} (Counter): Errors by class (client, server, network, decode)
//
// Retry Metrics (pkg/client):
//   - ingest_retries_total{error_class} (Counter): Retry attempts by error class
//   - ingest_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ingest_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Cache Metrics (pkg/cache):
//   - ingest_cache_hits_total{endpoint} (Counter): Page cache hits by endpoint
//   - ingest_cache_misses_total{endpoint} (Counter): Page cache misses by endpoint
//   - ingest_cache_errors_total{operation} (Counter): Cache operation errors
//   - ingest_304_responses_total (Counter): 304 Not Modified responses served from cache
//
// Ingestion Metrics (pkg/ingest):
//   - ingest_pages_fetched_total{strategy} (Counter): Pages collected by strategy
//
// Example Prometheus Queries:
//
//   # Injected failure ratio on the flaky endpoint
//   rate(measurements_injected_failures_total[5m]) /
//   sum(rate(measurements_http_requests_total{route="/measurements/very-reliable"}[5m]))
//
//   # Retries per fetched page
//   sum(rate(ingest_retries_total[5m])) / sum(rate(ingest_pages_fetched_total[5m]))
//
//   # P95 attempt latency
//   histogram_quantile(0.95, rate(ingest_request_duration_seconds_bucket[5m]))
//
//   # Cache revalidation rate
//   rate(ingest_304_responses_total[5m]) / sum(rate(ingest_requests_total[5m]))
