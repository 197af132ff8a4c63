// Package breaker provides per-backend circuit breaking on top of
// sony/gobreaker. Breakers are created lazily on first use of a backend and
// live for the process lifetime.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skathuria/modelgw/pkg/events"
)

// ErrCircuitOpen is returned when a backend's circuit rejects the call
// without invoking it.
var ErrCircuitOpen = errors.New("breaker: circuit open")

// Settings configure every breaker in a registry.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips a
	// closed circuit. The same number of consecutive successes is required
	// to close a half-open circuit again — recovery is deliberately
	// conservative.
	FailureThreshold uint32

	// ResetTimeout is how long an open circuit rejects calls before the
	// next call is admitted as a trial.
	ResetTimeout time.Duration

	// SweepInterval, when positive, runs a background probe so that open
	// circuits move to half-open even without traffic. The inline check on
	// Execute works regardless.
	SweepInterval time.Duration
}

// Registry holds one circuit breaker per backend.
type Registry struct {
	settings Settings
	sink     events.Sink

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRegistry creates a breaker registry. An invalid Settings value is a
// construction-time error, not a call-time one.
func NewRegistry(s Settings, sink events.Sink) (*Registry, error) {
	if s.FailureThreshold == 0 {
		return nil, fmt.Errorf("breaker: failure threshold must be positive")
	}
	if s.ResetTimeout <= 0 {
		return nil, fmt.Errorf("breaker: reset timeout must be positive")
	}
	if sink == nil {
		sink = events.NopSink{}
	}

	r := &Registry{
		settings: s,
		sink:     sink,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		stop:     make(chan struct{}),
	}

	if s.SweepInterval > 0 {
		go r.sweepLoop()
	}
	return r, nil
}

// Execute runs fn under the breaker for backendID. When the circuit is open
// the call is rejected with ErrCircuitOpen and fn is never invoked; any
// other error is the one fn returned.
func (r *Registry) Execute(backendID string, fn func() (interface{}, error)) (interface{}, error) {
	cb := r.get(backendID)

	res, err := cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		rejections.WithLabelValues(backendID).Inc()
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, backendID)
	}
	return res, err
}

// State returns the circuit state for a backend as a string
// ("closed", "half-open", "open"). Unused backends report "closed".
func (r *Registry) State(backendID string) string {
	r.mu.RLock()
	cb, ok := r.breakers[backendID]
	r.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// States snapshots the circuit state of every backend seen so far.
func (r *Registry) States() map[string]string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.breakers))
	for id := range r.breakers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = r.State(id)
	}
	return out
}

// Stop terminates the background sweep, if any.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) get(backendID string) *gobreaker.CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[backendID]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[backendID]; ok {
		return cb
	}

	threshold := r.settings.FailureThreshold
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: backendID,
		// Half-open admits (and requires) FailureThreshold consecutive
		// successes before closing.
		MaxRequests: threshold,
		Timeout:     r.settings.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			stateGauge.WithLabelValues(name).Set(stateValue(to))
			r.sink.CircuitStateChange(name, from.String(), to.String())
		},
	})
	r.breakers[backendID] = cb
	stateGauge.WithLabelValues(backendID).Set(stateValue(gobreaker.StateClosed))
	return cb
}

// sweepLoop periodically reads every breaker's state. gobreaker applies the
// open->half-open transition inside State(), so the read alone lets idle
// circuits recover.
func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.RLock()
			cbs := make([]*gobreaker.CircuitBreaker, 0, len(r.breakers))
			for _, cb := range r.breakers {
				cbs = append(cbs, cb)
			}
			r.mu.RUnlock()
			for _, cb := range cbs {
				cb.State()
			}
		case <-r.stop:
			return
		}
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
