package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modelgw_breaker_state",
		Help: "Circuit state per backend (0=closed, 1=half-open, 2=open)",
	}, []string{"backend"})

	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelgw_breaker_rejections_total",
		Help: "Calls rejected without invoking the backend because the circuit was open",
	}, []string{"backend"})
)
