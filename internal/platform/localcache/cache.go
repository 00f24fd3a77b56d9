// Package localcache provides the durable local tier of draft autosave.
// Every draft mutation is written here synchronously before the debounced
// remote flush is scheduled, so an in-progress note survives a crash of the
// client process.
package localcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = fmt.Errorf("localcache: not found")

// DraftCache is a key-value store for serialized draft snapshots.
type DraftCache interface {
	Put(ctx context.Context, noteID string, snapshot []byte) error
	Get(ctx context.Context, noteID string) ([]byte, error)
	Delete(ctx context.Context, noteID string) error
}

// RedisCache implements DraftCache on Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the given Redis URL and verifies the connection.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client), nil
}

// NewRedisCacheWithClient creates a cache from an existing Redis client.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "draft:",
		// Drafts are re-written on every edit; a generous TTL only reaps
		// abandoned sessions.
		ttl: 30 * 24 * time.Hour,
	}
}

func (c *RedisCache) key(noteID string) string {
	return c.prefix + noteID
}

func (c *RedisCache) Put(ctx context.Context, noteID string, snapshot []byte) error {
	if err := c.client.Set(ctx, c.key(noteID), snapshot, c.ttl).Err(); err != nil {
		return fmt.Errorf("put draft snapshot: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, noteID string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(noteID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft snapshot: %w", err)
	}
	return data, nil
}

func (c *RedisCache) Delete(ctx context.Context, noteID string) error {
	if err := c.client.Del(ctx, c.key(noteID)).Err(); err != nil {
		return fmt.Errorf("delete draft snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
