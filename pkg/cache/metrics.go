package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelgw_cache_hits_total",
		Help: "Responses served from the cache",
	})
	misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelgw_cache_misses_total",
		Help: "Cache lookups that required a backend call",
	})
	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelgw_cache_evictions_total",
		Help: "Entries evicted to stay under the size bound",
	})
	sizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modelgw_cache_entries",
		Help: "Entries currently held by the in-memory cache",
	})
)
