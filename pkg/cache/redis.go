package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the standard redis client. It is shared by the Redis cache,
// the audit-log store and the distributed rate limiter.
type Client struct {
	rdb *redis.Client
}

// NewRedis connects to the Redis server and verifies the connection.
func NewRedis(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Redis exposes the underlying client for callers that need richer
// commands (sorted sets, rate limiting scripts).
func (c *Client) Redis() *redis.Client { return c.rdb }

// Set stores a value with a TTL.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// RedisCache is a ResponseCache backed by Redis so cached generations
// survive restarts and are shared across gateway replicas. Expiry is
// Redis-native; the entry-count bound is delegated to the server's
// maxmemory policy.
type RedisCache struct {
	client *Client
}

var _ ResponseCache = (*RedisCache)(nil)

// NewRedisCache wraps a connected client as a ResponseCache.
func NewRedisCache(client *Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, fingerprint string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, respKey(fingerprint))
	if err != nil {
		if err != redis.Nil {
			log.Printf("⚠️ [CACHE] redis error: %v", err)
		}
		misses.Inc()
		return nil, false
	}
	hits.Inc()
	return data, true
}

func (r *RedisCache) Put(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, respKey(fingerprint), payload, ttl); err != nil {
		log.Printf("⚠️ [CACHE] failed to save: %v", err)
	}
}

func respKey(fingerprint string) string {
	return "gen:" + fingerprint
}
