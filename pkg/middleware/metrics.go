package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelgw_rate_limited_total",
		Help: "Requests rejected at the edge by the per-caller rate limiter",
	})
	httpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modelgw_http_request_seconds",
		Help:    "HTTP request handling time",
		Buckets: prometheus.DefBuckets,
	})
)
