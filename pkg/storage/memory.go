package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a bounded in-process Store for Redis-less deployments and
// tests. Oldest entries are dropped once capacity is reached.
type MemoryStore struct {
	capacity int

	mu      sync.RWMutex
	entries []*GenerationLog // append order = chronological
	byID    map[string]*GenerationLog
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store keeping at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{
		capacity: capacity,
		byID:     make(map[string]*GenerationLog),
	}
}

func (s *MemoryStore) SaveGenerationLog(_ context.Context, entry *GenerationLog) error {
	cpy := *entry

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.capacity {
		drop := s.entries[0]
		s.entries = s.entries[1:]
		delete(s.byID, drop.ID)
	}
	s.entries = append(s.entries, &cpy)
	s.byID[cpy.ID] = &cpy
	return nil
}

func (s *MemoryStore) GetGenerationLog(_ context.Context, id string) (*GenerationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("storage: log %s not found", id)
	}
	cpy := *entry
	return &cpy, nil
}

func (s *MemoryStore) ListGenerationLogs(_ context.Context, filters LogFilters) ([]*GenerationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filters.Limit
	if limit == 0 {
		limit = 100
	}

	logs := make([]*GenerationLog, 0, limit)
	skipped := 0
	// Newest first.
	for i := len(s.entries) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.entries[i]
		if !matches(entry, filters) {
			continue
		}
		if skipped < filters.Offset {
			skipped++
			continue
		}
		cpy := *entry
		logs = append(logs, &cpy)
	}
	return logs, nil
}

func matches(entry *GenerationLog, f LogFilters) bool {
	if f.CallerID != "" && entry.CallerID != f.CallerID {
		return false
	}
	if f.Backend != "" && entry.Backend != f.Backend {
		return false
	}
	if !f.From.IsZero() && entry.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && entry.Timestamp.After(f.To) {
		return false
	}
	return true
}

func (s *MemoryStore) GetUsageStats(ctx context.Context, callerID string, from, to time.Time) (*UsageStats, error) {
	logs, err := s.ListGenerationLogs(ctx, LogFilters{CallerID: callerID, From: from, To: to, Limit: s.capacity})
	if err != nil {
		return nil, err
	}
	return aggregateUsage(logs), nil
}

func (s *MemoryStore) GetCostStats(ctx context.Context, callerID string, from, to time.Time) (*CostStats, error) {
	logs, err := s.ListGenerationLogs(ctx, LogFilters{CallerID: callerID, From: from, To: to, Limit: s.capacity})
	if err != nil {
		return nil, err
	}
	return aggregateCost(logs), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
