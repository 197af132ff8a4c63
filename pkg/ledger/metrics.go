package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dailySpendGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modelgw_ledger_daily_spend_usd",
		Help: "Committed spend in the current daily period",
	})
	monthlySpendGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modelgw_ledger_monthly_spend_usd",
		Help: "Committed spend in the current monthly period",
	})
	committedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelgw_ledger_committed_usd_total",
		Help: "Total spend committed since process start",
	})
	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelgw_ledger_rejections_total",
		Help: "Requests refused because a spend limit would be crossed",
	}, []string{"period"})
)
