package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/metrics"
)

const (
	cacheKeyPrefix     = "dhroxy:cache:response:"
	defaultMemoryItems = 256
)

// Cached wraps a response body with its lifetime.
type Cached struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ResponseCache keeps successful upstream GET bodies in an in-process LRU and,
// when configured, in Redis so several server instances share them.
type ResponseCache struct {
	memory     *lru.Cache[string, Cached]
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// NewResponseCache creates the cache. The Redis tier is skipped when no URL is configured.
func NewResponseCache(config domain.CacheConfig, logger *logrus.Logger) (*ResponseCache, error) {
	size := config.MemoryItems
	if size <= 0 {
		size = defaultMemoryItems
	}
	memory, err := lru.New[string, Cached](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	c := &ResponseCache{
		memory:     memory,
		defaultTTL: config.DefaultTTL,
		logger:     logger,
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = 5 * time.Minute
	}
	if config.RedisURL == "" {
		return c, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.redis = client
	return c, nil
}

// Key builds the cache key for a URL fetched with the given headers.
func (c *ResponseCache) Key(url string, headers map[string]string) string {
	return url + "#" + CredentialFingerprint(headers)
}

// Get returns a cached body. Expired and corrupt Redis entries are removed.
func (c *ResponseCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if entry, ok := c.memory.Get(key); ok {
		if time.Now().Before(entry.ExpiresAt) {
			metrics.RecordCacheLookup("memory", true)
			return entry.Data, true
		}
		c.memory.Remove(key)
	}
	metrics.RecordCacheLookup("memory", false)

	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Response cache lookup failed")
		}
		metrics.RecordCacheLookup("redis", false)
		return nil, false
	}

	var entry Cached
	if err := json.Unmarshal(data, &entry); err != nil || time.Now().After(entry.ExpiresAt) {
		c.redis.Del(ctx, cacheKeyPrefix+key)
		metrics.RecordCacheLookup("redis", false)
		return nil, false
	}

	c.memory.Add(key, entry)
	metrics.RecordCacheLookup("redis", true)
	return entry.Data, true
}

// Set stores a body in both tiers.
func (c *ResponseCache) Set(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	entry := Cached{Data: data, CachedAt: now, ExpiresAt: now.Add(ttl)}
	c.memory.Add(key, entry)

	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKeyPrefix+key, payload, ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Response cache write failed")
	}
}

// Len is the number of entries in the memory tier.
func (c *ResponseCache) Len() int {
	return c.memory.Len()
}

// Purge clears the memory tier.
func (c *ResponseCache) Purge() {
	c.memory.Purge()
}

// Ping checks the Redis tier, if any.
func (c *ResponseCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *ResponseCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
