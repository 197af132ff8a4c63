// Package ledger tracks cumulative generation spend across all concurrent
// requests and enforces the daily and monthly hard limits.
package ledger

import (
	"fmt"
	"sync"
	"time"
)

// Limits configure the ledger. All values are construction-time inputs;
// invalid values are rejected in New, never at call time.
type Limits struct {
	DailyUSD   float64
	MonthlyUSD float64

	// WarnPercent emits a cost warning when projected spend crosses this
	// percentage of either limit. Zero disables warnings.
	WarnPercent float64
}

// LimitError reports a request refused by the ledger. No backend was
// contacted.
type LimitError struct {
	Period       string // "daily" or "monthly"
	SpentUSD     float64
	EstimatedUSD float64
	LimitUSD     float64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("ledger: %s limit exceeded: spent $%.4f + est. $%.4f > $%.2f",
		e.Period, e.SpentUSD, e.EstimatedUSD, e.LimitUSD)
}

// warnSink is the slice of events.Sink the ledger needs. Declared locally so
// the package stays importable from anywhere.
type warnSink interface {
	CostWarning(period string, spentUSD, limitUSD float64)
	CostRejected(period string, estimatedUSD float64)
}

// Ledger is the process-wide spend account. All methods are safe for
// concurrent use; every read-modify-write runs under one mutex so two
// concurrent commits can never lose an update.
type Ledger struct {
	limits Limits
	sink   warnSink
	now    func() time.Time // test seam

	mu             sync.Mutex
	dailySpend     float64
	monthlySpend   float64
	dailyResetAt   time.Time
	monthlyResetAt time.Time
	warnedDaily    bool
	warnedMonthly  bool
}

// New creates a ledger. Limits must be positive and WarnPercent within
// 0-100.
func New(limits Limits, sink warnSink) (*Ledger, error) {
	if limits.DailyUSD <= 0 || limits.MonthlyUSD <= 0 {
		return nil, fmt.Errorf("ledger: limits must be positive (daily=%.2f monthly=%.2f)",
			limits.DailyUSD, limits.MonthlyUSD)
	}
	if limits.WarnPercent < 0 || limits.WarnPercent > 100 {
		return nil, fmt.Errorf("ledger: warn percent %.1f outside 0-100", limits.WarnPercent)
	}

	l := &Ledger{
		limits: limits,
		sink:   sink,
		now:    time.Now,
	}
	n := l.now().UTC()
	l.dailyResetAt = nextMidnightUTC(n)
	l.monthlyResetAt = nextMonthUTC(n)
	return l, nil
}

// CheckAndReserve decides whether a request with the given estimated cost
// may proceed. It returns a *LimitError when either period's limit would be
// crossed; warnings are emitted (once per period) but do not block.
func (l *Ledger) CheckAndReserve(estimatedUSD float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	if l.dailySpend+estimatedUSD > l.limits.DailyUSD {
		rejectionsTotal.WithLabelValues("daily").Inc()
		if l.sink != nil {
			l.sink.CostRejected("daily", estimatedUSD)
		}
		return &LimitError{Period: "daily", SpentUSD: l.dailySpend, EstimatedUSD: estimatedUSD, LimitUSD: l.limits.DailyUSD}
	}
	if l.monthlySpend+estimatedUSD > l.limits.MonthlyUSD {
		rejectionsTotal.WithLabelValues("monthly").Inc()
		if l.sink != nil {
			l.sink.CostRejected("monthly", estimatedUSD)
		}
		return &LimitError{Period: "monthly", SpentUSD: l.monthlySpend, EstimatedUSD: estimatedUSD, LimitUSD: l.limits.MonthlyUSD}
	}

	if l.limits.WarnPercent > 0 && l.sink != nil {
		if !l.warnedDaily && (l.dailySpend+estimatedUSD) >= l.limits.DailyUSD*l.limits.WarnPercent/100 {
			l.warnedDaily = true
			l.sink.CostWarning("daily", l.dailySpend+estimatedUSD, l.limits.DailyUSD)
		}
		if !l.warnedMonthly && (l.monthlySpend+estimatedUSD) >= l.limits.MonthlyUSD*l.limits.WarnPercent/100 {
			l.warnedMonthly = true
			l.sink.CostWarning("monthly", l.monthlySpend+estimatedUSD, l.limits.MonthlyUSD)
		}
	}
	return nil
}

// Commit adds the actual reported cost of a completed backend call to both
// counters. The actual cost may differ from the estimate checked earlier.
// Cache hits never commit.
func (l *Ledger) Commit(actualUSD float64) {
	if actualUSD <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	l.dailySpend += actualUSD
	l.monthlySpend += actualUSD
	committedTotal.Add(actualUSD)
	dailySpendGauge.Set(l.dailySpend)
	monthlySpendGauge.Set(l.monthlySpend)
}

// Remaining is a snapshot of budget headroom.
type Remaining struct {
	DailyUSD       float64   `json:"daily_usd"`
	MonthlyUSD     float64   `json:"monthly_usd"`
	DailyResetAt   time.Time `json:"daily_reset_at"`
	MonthlyResetAt time.Time `json:"monthly_reset_at"`
}

// RemainingBudget reports current headroom against both limits.
func (l *Ledger) RemainingBudget() Remaining {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	return Remaining{
		DailyUSD:       max(0, l.limits.DailyUSD-l.dailySpend),
		MonthlyUSD:     max(0, l.limits.MonthlyUSD-l.monthlySpend),
		DailyResetAt:   l.dailyResetAt,
		MonthlyResetAt: l.monthlyResetAt,
	}
}

// rollover lazily resets counters whose period has elapsed. Must be called
// with the mutex held, before any read or write of the counters.
func (l *Ledger) rollover() {
	n := l.now().UTC()
	if !n.Before(l.dailyResetAt) {
		l.dailySpend = 0
		l.warnedDaily = false
		l.dailyResetAt = nextMidnightUTC(n)
		dailySpendGauge.Set(0)
	}
	if !n.Before(l.monthlyResetAt) {
		l.monthlySpend = 0
		l.warnedMonthly = false
		l.monthlyResetAt = nextMonthUTC(n)
		monthlySpendGauge.Set(0)
	}
}

func nextMidnightUTC(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

func nextMonthUTC(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
