package gateway

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skathuria/modelgw/pkg/storage"
)

// Gateway is the public entry point callers use. It wraps the router with
// caller-timeout handling and audit logging.
type Gateway struct {
	router *Router
	store  storage.Store // nil disables audit logging
}

// New creates the facade. store may be nil.
func New(router *Router, store storage.Store) *Gateway {
	return &Gateway{router: router, store: store}
}

// Generate runs one request through the fallback router. The caller's
// context bounds how long the caller waits; when it expires the request is
// abandoned but the in-flight chain runs to completion on a detached
// context so circuit-breaker and ledger accounting stay correct. The late
// result is simply discarded.
func (g *Gateway) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	type outcome struct {
		res *GenerationResult
		err error
	}

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		res, err := g.router.Generate(context.WithoutCancel(ctx), req)
		g.audit(req, res, err, time.Since(start))
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		durationHist.Observe(time.Since(start).Seconds())
		return out.res, out.err
	case <-ctx.Done():
		abandonedTotal.Inc()
		return nil, ctx.Err()
	}
}

// BatchOutcome pairs one batch slot with its result or error.
type BatchOutcome struct {
	Result *GenerationResult
	Err    error
}

// BatchGenerate runs the requests independently and concurrently, returning
// only the successful results ordered to match the input. A failed item is
// logged and dropped; it never aborts or taints the others. Callers that
// need per-item failure detail use BatchGenerateDetailed.
func (g *Gateway) BatchGenerate(ctx context.Context, reqs []GenerationRequest) []*GenerationResult {
	outcomes := g.BatchGenerateDetailed(ctx, reqs)

	results := make([]*GenerationResult, 0, len(reqs))
	for i, o := range outcomes {
		if o.Err != nil {
			log.Printf("[GATEWAY] batch item %d failed: %v", i, o.Err)
			continue
		}
		results = append(results, o.Result)
	}
	return results
}

// BatchGenerateDetailed returns one result-or-error per input slot, in
// input order.
func (g *Gateway) BatchGenerateDetailed(ctx context.Context, reqs []GenerationRequest) []BatchOutcome {
	batchSizeHist.Observe(float64(len(reqs)))

	outcomes := make([]BatchOutcome, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req GenerationRequest) {
			defer wg.Done()
			res, err := g.Generate(ctx, req)
			outcomes[i] = BatchOutcome{Result: res, Err: err}
		}(i, req)
	}
	wg.Wait()
	return outcomes
}

// audit persists the outcome asynchronously; a slow or absent store never
// delays the caller.
func (g *Gateway) audit(req GenerationRequest, res *GenerationResult, genErr error, duration time.Duration) {
	if g.store == nil {
		return
	}

	entry := storage.GenerationLog{
		ID:        "gen_" + uuid.New().String(),
		Timestamp: time.Now(),
		CallerID:  req.CallerID,
		Moderated: req.Moderate,
		Duration:  duration,
	}
	if res != nil {
		entry.CorrelationID = res.CorrelationID
		entry.Backend = res.Backend
		entry.TokensIn = res.TokensIn
		entry.TokensOut = res.TokensOut
		entry.CostUSD = res.CostUSD
		entry.CacheHit = res.Cached
		if res.Moderation != nil {
			entry.Flagged = res.Moderation.Flagged
		}
	}
	if genErr != nil {
		entry.Error = genErr.Error()
		if IsPolicyViolation(genErr) {
			entry.Flagged = true
		}
	}

	go func(entry storage.GenerationLog) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := g.store.SaveGenerationLog(ctx, &entry); err != nil {
			log.Printf("[AUDIT] failed to persist entry %s: %v", entry.ID, err)
		}
	}(entry)
}
