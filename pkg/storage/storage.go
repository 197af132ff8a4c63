package storage

import (
	"context"
	"time"
)

// Store defines the interface for persisting generation audit logs.
type Store interface {
	SaveGenerationLog(ctx context.Context, entry *GenerationLog) error
	GetGenerationLog(ctx context.Context, id string) (*GenerationLog, error)
	ListGenerationLogs(ctx context.Context, filters LogFilters) ([]*GenerationLog, error)

	// Analytics
	GetUsageStats(ctx context.Context, callerID string, from, to time.Time) (*UsageStats, error)
	GetCostStats(ctx context.Context, callerID string, from, to time.Time) (*CostStats, error)

	// Health check
	Ping(ctx context.Context) error
}

func aggregateUsage(logs []*GenerationLog) *UsageStats {
	stats := &UsageStats{ByBackend: make(map[string]int64)}

	var totalDuration time.Duration
	for _, l := range logs {
		stats.TotalRequests++
		if l.Error != "" {
			stats.Failures++
		}
		if l.CacheHit {
			stats.CacheHits++
		} else {
			stats.CacheMisses++
		}
		if l.Backend != "" {
			stats.ByBackend[l.Backend]++
		}
		totalDuration += l.Duration
	}
	if stats.TotalRequests > 0 {
		stats.AvgDuration = totalDuration / time.Duration(stats.TotalRequests)
	}
	return stats
}

func aggregateCost(logs []*GenerationLog) *CostStats {
	stats := &CostStats{ByBackend: make(map[string]float64)}

	for _, l := range logs {
		stats.TotalCostUSD += l.CostUSD
		stats.TotalTokens += int64(l.TokensIn + l.TokensOut)
		if l.Backend != "" {
			stats.ByBackend[l.Backend] += l.CostUSD
		}
	}
	return stats
}
