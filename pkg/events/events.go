// Package events defines the structured-event surface the gateway core
// emits toward the observability collaborator. Prometheus metrics live next
// to the code that produces them; this sink carries the discrete events an
// operator wants in a log stream or event bus.
package events

import (
	"log"
	"time"
)

// Sink receives operational events from the gateway core. Implementations
// must be safe for concurrent use; all methods are fire-and-forget.
type Sink interface {
	// CircuitStateChange fires on every breaker transition for a backend.
	CircuitStateChange(backendID, from, to string)

	// CacheLookup fires for every cache read with the hit/miss outcome.
	CacheLookup(fingerprint string, hit bool)

	// CostWarning fires once per period when projected spend crosses the
	// warning threshold of a limit.
	CostWarning(period string, spentUSD, limitUSD float64)

	// CostRejected fires when the ledger refuses a request outright.
	CostRejected(period string, estimatedUSD float64)

	// BackendAttempt fires after each individual backend invocation.
	// err is nil on success.
	BackendAttempt(backendID string, attempt int, duration time.Duration, err error)

	// AggregateFailure fires when a whole fallback chain is exhausted.
	AggregateFailure(correlationID string, backendErrs []error)
}

// NopSink discards all events. Embed it in test sinks to record only the
// events under test.
type NopSink struct{}

func (NopSink) CircuitStateChange(string, string, string)        {}
func (NopSink) CacheLookup(string, bool)                         {}
func (NopSink) CostWarning(string, float64, float64)             {}
func (NopSink) CostRejected(string, float64)                     {}
func (NopSink) BackendAttempt(string, int, time.Duration, error) {}
func (NopSink) AggregateFailure(string, []error)                 {}

var _ Sink = NopSink{}

// LogSink writes events to the standard logger.
type LogSink struct{}

var _ Sink = LogSink{}

func (LogSink) CircuitStateChange(backendID, from, to string) {
	log.Printf("[BREAKER] %s: %s -> %s", backendID, from, to)
}

func (LogSink) CacheLookup(fingerprint string, hit bool) {
	if hit {
		log.Printf("⚡ [CACHE] HIT %s", short(fingerprint))
	}
}

func (LogSink) CostWarning(period string, spentUSD, limitUSD float64) {
	log.Printf("⚠️ [COST] %s spend $%.4f approaching limit $%.2f", period, spentUSD, limitUSD)
}

func (LogSink) CostRejected(period string, estimatedUSD float64) {
	log.Printf("⛔ [COST] rejected request (est. $%.4f) over %s limit", estimatedUSD, period)
}

func (LogSink) BackendAttempt(backendID string, attempt int, duration time.Duration, err error) {
	if err != nil {
		log.Printf("[ROUTER] %s attempt %d failed after %v: %v", backendID, attempt+1, duration, err)
	}
}

func (LogSink) AggregateFailure(correlationID string, backendErrs []error) {
	log.Printf("💥 [ROUTER] %s: all %d backends failed", correlationID, len(backendErrs))
}

func short(fingerprint string) string {
	if len(fingerprint) > 8 {
		return fingerprint[:8]
	}
	return fingerprint
}
