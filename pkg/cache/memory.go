package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is a bounded in-process ResponseCache with LRU eviction and TTL
// expiry. It is the default when Redis is not configured.
type Memory struct {
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type memoryEntry struct {
	fingerprint string
	payload     []byte
	expiresAt   time.Time
}

var _ ResponseCache = (*Memory)(nil)

// NewMemory creates an in-memory cache holding at most maxEntries items.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache: max entries must be positive, got %d", maxEntries)
	}
	return &Memory{
		maxEntries: maxEntries,
		now:        time.Now,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}, nil
}

func (m *Memory) Get(_ context.Context, fingerprint string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[fingerprint]
	if !ok {
		misses.Inc()
		return nil, false
	}

	ent := el.Value.(*memoryEntry)
	if !m.now().Before(ent.expiresAt) {
		// Expired but not yet evicted: counts as a miss and is removed.
		m.remove(el)
		misses.Inc()
		return nil, false
	}

	m.order.MoveToFront(el)
	hits.Inc()
	return ent.payload, true
}

func (m *Memory) Put(_ context.Context, fingerprint string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := m.now().Add(ttl)
	if el, ok := m.entries[fingerprint]; ok {
		ent := el.Value.(*memoryEntry)
		ent.payload = payload
		ent.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return
	}

	// The size invariant: never exceed maxEntries. Evict the LRU entry
	// before inserting.
	if m.order.Len() >= m.maxEntries {
		if back := m.order.Back(); back != nil {
			m.remove(back)
			evictions.Inc()
		}
	}

	el := m.order.PushFront(&memoryEntry{
		fingerprint: fingerprint,
		payload:     payload,
		expiresAt:   expiresAt,
	})
	m.entries[fingerprint] = el
	sizeGauge.Set(float64(m.order.Len()))
}

// Len returns the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// remove deletes an element. Must be called with the mutex held.
func (m *Memory) remove(el *list.Element) {
	ent := el.Value.(*memoryEntry)
	m.order.Remove(el)
	delete(m.entries, ent.fingerprint)
	sizeGauge.Set(float64(m.order.Len()))
}
