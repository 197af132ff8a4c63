package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelgw_requests_total",
		Help: "Requests by terminal outcome (ok, cache_hit, cost_rejected, flagged, exhausted)",
	}, []string{"outcome"})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelgw_backend_attempts_total",
		Help: "Individual backend invocations by outcome",
	}, []string{"backend", "outcome"})

	durationHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modelgw_request_duration_seconds",
		Help:    "End-to-end request latency including retries and fallbacks",
		Buckets: prometheus.DefBuckets,
	})

	batchSizeHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modelgw_batch_size",
		Help:    "Number of requests per batch call",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	abandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelgw_requests_abandoned_total",
		Help: "Requests abandoned by their caller before the chain finished",
	})
)
