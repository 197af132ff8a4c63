package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemory_RejectsNonPositiveSize(t *testing.T) {
	_, err := NewMemory(0)
	assert.Error(t, err)

	_, err = NewMemory(-1)
	assert.Error(t, err)
}

func TestMemory_PutThenGet(t *testing.T) {
	m, err := NewMemory(10)
	require.NoError(t, err)
	ctx := context.Background()

	m.Put(ctx, "fp1", []byte("payload"), time.Minute)

	got, ok := m.Get(ctx, "fp1")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	_, ok = m.Get(ctx, "unknown")
	assert.False(t, ok)
}

func TestMemory_ExpiredEntryIsAMiss(t *testing.T) {
	m, err := NewMemory(10)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }
	m.Put(ctx, "fp1", []byte("payload"), time.Minute)

	m.now = func() time.Time { return base.Add(61 * time.Second) }

	_, ok := m.Get(ctx, "fp1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "expired entry is removed on read")
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	m, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	m.Put(ctx, "a", []byte("a"), time.Minute)
	m.Put(ctx, "b", []byte("b"), time.Minute)

	// Touch "a" so "b" becomes the LRU entry.
	_, ok := m.Get(ctx, "a")
	require.True(t, ok)

	m.Put(ctx, "c", []byte("c"), time.Minute)

	_, ok = m.Get(ctx, "b")
	assert.False(t, ok, "the least recently used entry is evicted")
	_, ok = m.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = m.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestMemory_UpdateDoesNotGrow(t *testing.T) {
	m, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	m.Put(ctx, "a", []byte("v1"), time.Minute)
	m.Put(ctx, "a", []byte("v2"), time.Minute)

	assert.Equal(t, 1, m.Len())
	got, ok := m.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
}

func TestMemory_NeverExceedsBound(t *testing.T) {
	const bound = 8
	m, err := NewMemory(bound)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		m.Put(ctx, fmt.Sprintf("fp%d", i), []byte("x"), time.Minute)
		assert.LessOrEqual(t, m.Len(), bound)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m, err := NewMemory(32)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("fp%d", j%40)
				m.Put(ctx, key, []byte("x"), time.Minute)
				m.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 32)
}
