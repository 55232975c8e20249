package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "measurements_http_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "measurements_http_request_duration_seconds",
		Help:    "API request duration in seconds by route",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"route"})

	injectedFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "measurements_injected_failures_total",
		Help: "Total simulated 500 responses from the unreliable endpoint",
	})

	generatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "measurements_generated_total",
		Help: "Total measurements synthesized",
	})
)
