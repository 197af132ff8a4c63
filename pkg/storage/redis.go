package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skathuria/modelgw/pkg/cache"
)

// RedisStore implements Store using Redis with time-series indexes.
type RedisStore struct {
	rdb *cache.Client
	ttl time.Duration // log retention
}

// NewRedisStore creates a Redis-backed audit log store.
func NewRedisStore(rdb *cache.Client, retention time.Duration) *RedisStore {
	if retention == 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: retention}
}

// SaveGenerationLog stores a log entry and indexes it on the global,
// per-caller and per-backend timelines.
func (s *RedisStore) SaveGenerationLog(ctx context.Context, entry *GenerationLog) error {
	key := fmt.Sprintf("genlog:%s", entry.ID)
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := s.rdb.Set(ctx, key, data, s.ttl); err != nil {
		return err
	}

	timestamp := float64(entry.Timestamp.Unix())
	cutoff := fmt.Sprintf("%f", float64(time.Now().Add(-s.ttl).Unix()))

	s.index(ctx, "genlogs:timeline", entry.ID, timestamp, cutoff)
	if entry.CallerID != "" {
		s.index(ctx, fmt.Sprintf("genlogs:caller:%s", entry.CallerID), entry.ID, timestamp, cutoff)
	}
	if entry.Backend != "" {
		s.index(ctx, fmt.Sprintf("genlogs:backend:%s", entry.Backend), entry.ID, timestamp, cutoff)
	}
	return nil
}

func (s *RedisStore) index(ctx context.Context, key, id string, score float64, cutoff string) {
	s.rdb.Redis().ZAdd(ctx, key, redis.Z{Score: score, Member: id})
	s.rdb.Redis().ZRemRangeByScore(ctx, key, "-inf", cutoff)
	s.rdb.Redis().Expire(ctx, key, s.ttl)
}

// GetGenerationLog retrieves a single entry by ID.
func (s *RedisStore) GetGenerationLog(ctx context.Context, id string) (*GenerationLog, error) {
	data, err := s.rdb.Get(ctx, fmt.Sprintf("genlog:%s", id))
	if err != nil {
		return nil, err
	}

	var entry GenerationLog
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListGenerationLogs queries logs with filters, newest first.
func (s *RedisStore) ListGenerationLogs(ctx context.Context, filters LogFilters) ([]*GenerationLog, error) {
	var indexKey string
	switch {
	case filters.CallerID != "":
		indexKey = fmt.Sprintf("genlogs:caller:%s", filters.CallerID)
	case filters.Backend != "":
		indexKey = fmt.Sprintf("genlogs:backend:%s", filters.Backend)
	default:
		indexKey = "genlogs:timeline"
	}

	minScore := float64(filters.From.Unix())
	maxScore := float64(filters.To.Unix())
	if filters.To.IsZero() {
		maxScore = float64(time.Now().Unix())
	}

	limit := filters.Limit
	if limit == 0 {
		limit = 100
	}

	ids, err := s.rdb.Redis().ZRevRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min:    fmt.Sprintf("%f", minScore),
		Max:    fmt.Sprintf("%f", maxScore),
		Offset: int64(filters.Offset),
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	logs := make([]*GenerationLog, 0, len(ids))
	for _, id := range ids {
		entry, err := s.GetGenerationLog(ctx, id)
		if err != nil {
			continue
		}
		// Secondary filter when the primary index was caller-based.
		if filters.Backend != "" && entry.Backend != filters.Backend {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// GetUsageStats calculates usage statistics over the range.
func (s *RedisStore) GetUsageStats(ctx context.Context, callerID string, from, to time.Time) (*UsageStats, error) {
	logs, err := s.ListGenerationLogs(ctx, LogFilters{
		CallerID: callerID,
		From:     from,
		To:       to,
		Limit:    10000,
	})
	if err != nil {
		return nil, err
	}
	return aggregateUsage(logs), nil
}

// GetCostStats calculates cost statistics over the range.
func (s *RedisStore) GetCostStats(ctx context.Context, callerID string, from, to time.Time) (*CostStats, error) {
	logs, err := s.ListGenerationLogs(ctx, LogFilters{
		CallerID: callerID,
		From:     from,
		To:       to,
		Limit:    10000,
	})
	if err != nil {
		return nil, err
	}
	return aggregateCost(logs), nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Redis().Ping(ctx).Err()
}
