package storage

import "time"

// GenerationLog captures one gateway request outcome for persistence layers.
type GenerationLog struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	CallerID      string        `json:"caller_id,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Backend       string        `json:"backend,omitempty"`
	TokensIn      int           `json:"tokens_in,omitempty"`
	TokensOut     int           `json:"tokens_out,omitempty"`
	CostUSD       float64       `json:"cost_usd,omitempty"`
	CacheHit      bool          `json:"cache_hit"`
	Moderated     bool          `json:"moderated"`
	Flagged       bool          `json:"flagged"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// LogFilters for querying generation logs.
type LogFilters struct {
	CallerID string
	Backend  string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// UsageStats aggregated usage statistics.
type UsageStats struct {
	TotalRequests int64            `json:"total_requests"`
	Failures      int64            `json:"failures"`
	CacheHits     int64            `json:"cache_hits"`
	CacheMisses   int64            `json:"cache_misses"`
	ByBackend     map[string]int64 `json:"by_backend"`
	AvgDuration   time.Duration    `json:"avg_duration"`
}

// CostStats aggregated cost statistics.
type CostStats struct {
	TotalCostUSD float64            `json:"total_cost_usd"`
	TotalTokens  int64              `json:"total_tokens"`
	ByBackend    map[string]float64 `json:"by_backend"`
}
