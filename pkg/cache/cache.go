// Package cache provides the response cache keyed by request fingerprint,
// plus the shared Redis client used across the gateway.
package cache

import (
	"context"
	"time"
)

// ResponseCache stores serialized generation results by fingerprint.
// Implementations must be safe for concurrent use. An expired entry is
// never returned, even if it has not been evicted yet.
type ResponseCache interface {
	Get(ctx context.Context, fingerprint string) ([]byte, bool)
	Put(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration)
}
