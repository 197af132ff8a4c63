// Package retry implements exponential backoff with jitter for a single
// backend's attempt sequence. Whether a chain moves on to the next backend
// is the router's business; this package only decides whether and how long
// to wait before re-running one attempt function.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy configures retries for one attempt sequence.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BaseDelay seeds the exponential backoff: attempt n waits
	// min(MaxDelay, BaseDelay*2^n) plus jitter.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// Classify reports whether an error is worth retrying. A nil Classify
	// retries everything.
	Classify func(error) bool
}

// Do runs fn up to MaxRetries+1 times. A failure Classify rejects aborts
// immediately without consuming further retries; exhausting retries returns
// the last error. The context cancels pending backoff waits.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.backoff(attempt-1)); err != nil {
				return lastErr
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Classify != nil && !p.Classify(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// backoff returns the wait before retry number attempt (0-based).
func (p Policy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}

	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	// Full jitter on top of the deterministic floor, up to one BaseDelay,
	// so synchronized clients spread out.
	return d + time.Duration(rand.Int63n(int64(p.BaseDelay)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
