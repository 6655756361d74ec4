package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetadataCache stores the last successful provider discovery.
type MetadataCache interface {
	Get(ctx context.Context) (ProviderMetadata, bool, error)
	Set(ctx context.Context, md ProviderMetadata, ttl time.Duration) error
}

// MemoryMetadataCache keeps discovery results in process memory.
type MemoryMetadataCache struct {
	mu      sync.RWMutex
	md      ProviderMetadata
	expires time.Time
	now     func() time.Time
}

// NewMemoryMetadataCache returns an empty in-process cache.
func NewMemoryMetadataCache() *MemoryMetadataCache {
	return &MemoryMetadataCache{now: time.Now}
}

func (c *MemoryMetadataCache) Get(_ context.Context) (ProviderMetadata, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.expires.IsZero() || !c.now().Before(c.expires) {
		return ProviderMetadata{}, false, nil
	}
	return c.md, true, nil
}

func (c *MemoryMetadataCache) Set(_ context.Context, md ProviderMetadata, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.md = md
	c.expires = c.now().Add(ttl)
	return nil
}

// RedisMetadataCacheKey is where RedisMetadataCache stores the discovery document.
const RedisMetadataCacheKey = "signin:provider:google:metadata"

// RedisMetadataCache shares discovery results between processes through Redis.
type RedisMetadataCache struct {
	rdb redis.Cmdable
	key string
}

// NewRedisMetadataCache creates a cache backed by rdb.
func NewRedisMetadataCache(rdb redis.Cmdable) *RedisMetadataCache {
	return &RedisMetadataCache{rdb: rdb, key: RedisMetadataCacheKey}
}

func (c *RedisMetadataCache) Get(ctx context.Context) (ProviderMetadata, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ProviderMetadata{}, false, nil
		}
		return ProviderMetadata{}, false, fmt.Errorf("redis get metadata: %w", err)
	}

	var md ProviderMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return ProviderMetadata{}, false, fmt.Errorf("decode cached metadata: %w", err)
	}
	if err := md.Validate(); err != nil {
		return ProviderMetadata{}, false, fmt.Errorf("cached metadata: %w", err)
	}
	return md, true, nil
}

func (c *RedisMetadataCache) Set(ctx context.Context, md ProviderMetadata, ttl time.Duration) error {
	raw, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set metadata: %w", err)
	}
	return nil
}
