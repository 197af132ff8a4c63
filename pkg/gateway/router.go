package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skathuria/modelgw/pkg/ai"
	"github.com/skathuria/modelgw/pkg/backend"
	"github.com/skathuria/modelgw/pkg/breaker"
	"github.com/skathuria/modelgw/pkg/cache"
	"github.com/skathuria/modelgw/pkg/events"
	"github.com/skathuria/modelgw/pkg/ledger"
	"github.com/skathuria/modelgw/pkg/moderation"
	"github.com/skathuria/modelgw/pkg/retry"
)

// defaultMaxOutputTokens bounds the cost estimate when the caller did not
// cap the output.
const defaultMaxOutputTokens = 1024

// RouterConfig wires the router's collaborators. Breakers, ledger and cache
// are injected shared objects, not ambient singletons, so tests can run
// isolated instances.
type RouterConfig struct {
	Adapters []backend.Adapter
	Breakers *breaker.Registry
	Retry    retry.Policy
	Ledger   *ledger.Ledger
	Cache    cache.ResponseCache

	// Gate is optional; a nil gate skips moderation even when requested.
	Gate *moderation.Gate

	// Pricing per backend id, used only for pre-check estimates.
	Pricing map[string]ai.Pricing

	CacheTTL time.Duration
	Sink     events.Sink
}

// Router executes the fallback algorithm for one logical request.
type Router struct {
	adapters map[string]backend.Adapter
	breakers *breaker.Registry
	retry    retry.Policy
	ledger   *ledger.Ledger
	cache    cache.ResponseCache
	gate     *moderation.Gate
	pricing  map[string]ai.Pricing
	cacheTTL time.Duration
	sink     events.Sink
}

// NewRouter validates the wiring and builds a router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if len(cfg.Adapters) == 0 {
		return nil, fmt.Errorf("gateway: at least one backend adapter is required")
	}
	if cfg.Breakers == nil {
		return nil, fmt.Errorf("gateway: breaker registry is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("gateway: cost ledger is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("gateway: response cache is required")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("gateway: cache TTL must be positive")
	}
	if cfg.Sink == nil {
		cfg.Sink = events.NopSink{}
	}
	if cfg.Retry.Classify == nil {
		cfg.Retry.Classify = backend.IsRetryable
	}

	adapters := make(map[string]backend.Adapter, len(cfg.Adapters))
	for _, a := range cfg.Adapters {
		if _, dup := adapters[a.ID()]; dup {
			return nil, fmt.Errorf("gateway: duplicate backend adapter %q", a.ID())
		}
		adapters[a.ID()] = a
	}

	return &Router{
		adapters: adapters,
		breakers: cfg.Breakers,
		retry:    cfg.Retry,
		ledger:   cfg.Ledger,
		cache:    cfg.Cache,
		gate:     cfg.Gate,
		pricing:  cfg.Pricing,
		cacheTTL: cfg.CacheTTL,
		sink:     cfg.Sink,
	}, nil
}

// Generate runs the full pipeline for one request:
// cache lookup, ledger pre-check, the ordered backend chain (each backend
// gated by its breaker and driven through the retry policy), moderation,
// ledger commit and cache write.
//
// Callers receive a result or exactly one of: *ledger.LimitError,
// *moderation.PolicyViolationError, *AggregateFailureError,
// ErrInvalidRequest. Raw backend errors never escape on their own.
func (rt *Router) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if req.Prompt == "" || req.Primary == "" {
		return nil, fmt.Errorf("%w: prompt and primary backend are required", ErrInvalidRequest)
	}

	correlationID := uuid.New().String()
	fingerprint := req.Fingerprint()

	// 1. Cache. A hit bypasses ledger, breakers and moderation entirely.
	if data, ok := rt.cache.Get(ctx, fingerprint); ok {
		var res GenerationResult
		if err := json.Unmarshal(data, &res); err == nil {
			res.Cached = true
			rt.sink.CacheLookup(fingerprint, true)
			requestsTotal.WithLabelValues("cache_hit").Inc()
			return &res, nil
		}
		// Corrupt entry: fall through as a miss.
	}
	rt.sink.CacheLookup(fingerprint, false)

	// 2. Ledger pre-check with an estimate. Rejection means no backend is
	// contacted at all.
	if err := rt.ledger.CheckAndReserve(rt.estimate(req)); err != nil {
		requestsTotal.WithLabelValues("cost_rejected").Inc()
		return nil, err
	}

	// 3. The fallback chain, strictly in order.
	failures := make([]BackendFailure, 0, 1+len(req.Fallbacks))
	for _, id := range req.Chain() {
		inv, err := rt.tryBackend(ctx, id, req)
		if err != nil {
			failures = append(failures, BackendFailure{
				Backend: id,
				Err:     err,
				Skipped: errors.Is(err, breaker.ErrCircuitOpen),
			})
			continue
		}
		return rt.finish(ctx, req, fingerprint, correlationID, id, inv)
	}

	agg := &AggregateFailureError{CorrelationID: correlationID, Attempts: failures}
	rt.sink.AggregateFailure(correlationID, agg.Unwrap())
	requestsTotal.WithLabelValues("exhausted").Inc()
	return nil, agg
}

// tryBackend runs one backend's full attempt sequence under its circuit
// breaker. An open circuit skips the backend without consuming retries;
// a fatal error aborts the sequence; exhausted retries surface the last
// error. Any of these counts as one failure for breaker bookkeeping.
func (rt *Router) tryBackend(ctx context.Context, id string, req GenerationRequest) (*backend.Invocation, error) {
	adapter, ok := rt.adapters[id]
	if !ok {
		return nil, fmt.Errorf("gateway: unknown backend %q", id)
	}

	res, err := rt.breakers.Execute(id, func() (interface{}, error) {
		var inv *backend.Invocation
		attempt := 0
		rerr := rt.retry.Do(ctx, func(ctx context.Context) error {
			start := time.Now()
			out, ierr := adapter.Invoke(ctx, req.Prompt, req.Options)
			rt.sink.BackendAttempt(id, attempt, time.Since(start), ierr)
			attemptsTotal.WithLabelValues(id, outcome(ierr)).Inc()
			attempt++
			if ierr != nil {
				return ierr
			}
			inv = out
			return nil
		})
		if rerr != nil {
			return nil, rerr
		}
		return inv, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*backend.Invocation), nil
}

// finish commits cost, applies the moderation gate and writes the cache
// entry. Commit happens before moderation: a flagged generation was still
// produced and paid for, and that cost is deliberately not refunded.
func (rt *Router) finish(ctx context.Context, req GenerationRequest, fingerprint, correlationID, backendID string, inv *backend.Invocation) (*GenerationResult, error) {
	rt.ledger.Commit(inv.CostUSD)

	result := &GenerationResult{
		Payload:       inv.Payload,
		Backend:       backendID,
		CorrelationID: correlationID,
		TokensIn:      inv.TokensIn,
		TokensOut:     inv.TokensOut,
		CostUSD:       inv.CostUSD,
	}

	if req.Moderate && rt.gate != nil {
		verdict, err := rt.gate.Check(ctx, string(inv.Payload))
		if verdict != nil {
			result.Moderation = verdict
		}
		if err != nil {
			requestsTotal.WithLabelValues("flagged").Inc()
			return nil, err
		}
	}

	if data, err := json.Marshal(result); err == nil {
		rt.cache.Put(ctx, fingerprint, data, rt.cacheTTL)
	}
	requestsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// estimate derives a pre-check cost from the prompt and the response-size
// options, priced for the primary backend. Backends without pricing
// estimate to zero; the commit of their actual cost still counts.
func (rt *Router) estimate(req GenerationRequest) float64 {
	pricing, ok := rt.pricing[req.Primary]
	if !ok {
		return 0
	}
	maxOut := req.Options.MaxTokens
	if maxOut <= 0 {
		maxOut = defaultMaxOutputTokens
	}
	return ai.EstimateCost(ai.CountTokens(req.Primary, req.Prompt), maxOut, pricing)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}
