package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var flaggedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modelgw_moderation_flagged_total",
	Help: "Generations rejected by the moderation gate",
})
