// Package mock provides a scriptable in-memory backend adapter. Tests use
// it to drive the fallback router; the gateway daemon uses it for backends
// declared with kind "mock" so the full pipeline can run without provider
// credentials.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skathuria/modelgw/pkg/backend"
)

// Adapter is a mock backend for testing and local runs.
type Adapter struct {
	id      string
	payload []byte
	costUSD float64
	latency time.Duration

	calls atomic.Int64

	mu     sync.Mutex
	script []error // consumed per call; nil entry = success
}

var _ backend.Adapter = (*Adapter)(nil)

// Option configures a mock Adapter.
type Option func(*Adapter)

// New creates a mock adapter with the given options.
func New(id string, opts ...Option) *Adapter {
	a := &Adapter{
		id:      id,
		payload: []byte("mock generation from " + id),
		costUSD: 0.01,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithPayload sets the payload returned on success.
func WithPayload(payload string) Option {
	return func(a *Adapter) { a.payload = []byte(payload) }
}

// WithCost sets the cost reported per successful call.
func WithCost(usd float64) Option {
	return func(a *Adapter) { a.costUSD = usd }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(a *Adapter) { a.latency = d }
}

// WithScript queues per-call outcomes. Each invocation consumes one entry;
// a nil entry succeeds. When the script is exhausted calls succeed.
func WithScript(outcomes ...error) Option {
	return func(a *Adapter) { a.script = outcomes }
}

func (a *Adapter) ID() string { return a.id }

// Calls returns how many times Invoke has run, including failures.
func (a *Adapter) Calls() int { return int(a.calls.Load()) }

// Fail appends failures to the script at runtime.
func (a *Adapter) Fail(errs ...error) {
	a.mu.Lock()
	a.script = append(a.script, errs...)
	a.mu.Unlock()
}

func (a *Adapter) Invoke(ctx context.Context, prompt string, opts backend.Options) (*backend.Invocation, error) {
	a.calls.Add(1)

	if a.latency > 0 {
		select {
		case <-time.After(a.latency):
		case <-ctx.Done():
			return nil, backend.NewError(a.id, backend.StatusTimeout, ctx.Err())
		}
	}

	a.mu.Lock()
	var outcome error
	if len(a.script) > 0 {
		outcome = a.script[0]
		a.script = a.script[1:]
	}
	a.mu.Unlock()

	if outcome != nil {
		return nil, outcome
	}

	tokensIn := len(prompt) / 4
	if tokensIn == 0 {
		tokensIn = 1
	}
	return &backend.Invocation{
		Payload:   a.payload,
		TokensIn:  tokensIn,
		TokensOut: len(a.payload) / 4,
		CostUSD:   a.costUSD,
	}, nil
}

// TimeoutError returns a retryable timeout failure for this adapter's id.
func (a *Adapter) TimeoutError() error {
	return backend.NewError(a.id, backend.StatusTimeout, fmt.Errorf("simulated timeout"))
}

// RateLimitError returns a retryable throttle failure for this adapter's id.
func (a *Adapter) RateLimitError() error {
	return backend.NewError(a.id, backend.StatusRateLimited, fmt.Errorf("simulated throttle"))
}

// FatalError returns a non-retryable validation failure for this adapter's id.
func (a *Adapter) FatalError() error {
	return backend.NewError(a.id, backend.StatusInvalid, fmt.Errorf("simulated bad request"))
}
