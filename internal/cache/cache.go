// Package cache implements the two-tier store from spec §4.9: Redis
// as the shared primary, an in-process LRU as a per-process fallback
// when Redis is unreachable. The key/value/TTL shape and the
// marshal-with-expiry-stamp pattern are grounded on
// pkg/external/cache.go's CacheClient in the pack.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sdodlapa/omicsoracle/internal/domain"
)

const fallbackCapacity = 2048

// Cache is the pipeline's cache layer. Redis failures fall through to
// an in-memory LRU; Set still returns the failed Redis write's error,
// and Health reports whether Redis is reachable.
type Cache struct {
	redis    *redis.Client
	fallback *lru.Cache[string, fallbackEntry]
	mu       sync.Mutex
}

type fallbackEntry struct {
	value     []byte
	expiresAt time.Time
}

// New connects to redisURL. If the URL is empty or unparseable, the
// Cache runs fallback-only, matching spec §4.9's "used when primary is
// unreachable" language for the degenerate case of no primary at all.
func New(redisURL string) *Cache {
	c := &Cache{}
	if redisURL != "" {
		if opts, err := redis.ParseURL(redisURL); err == nil {
			c.redis = redis.NewClient(opts)
		}
	}
	fb, _ := lru.New[string, fallbackEntry](fallbackCapacity)
	c.fallback = fb
	return c
}

// Get returns the cached result for key, reporting a miss on
// expiration, absence, or a decode error (a corrupted entry is
// treated as a miss, never surfaced as an error).
func (c *Cache) Get(ctx context.Context, key domain.CacheKey) (*domain.PublicationResult, bool) {
	if c.redis != nil {
		val, err := c.redis.Get(ctx, string(key)).Result()
		if err == nil {
			var result domain.PublicationResult
			if json.Unmarshal([]byte(val), &result) == nil {
				return &result, true
			}
			c.redis.Del(ctx, string(key))
			return nil, false
		}
		if err != redis.Nil {
			return c.getFallback(key)
		}
		return nil, false
	}
	return c.getFallback(key)
}

func (c *Cache) getFallback(key domain.CacheKey) (*domain.PublicationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.fallback.Get(string(key))
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.fallback.Remove(string(key))
		return nil, false
	}
	var result domain.PublicationResult
	if json.Unmarshal(entry.value, &result) != nil {
		return nil, false
	}
	return &result, true
}

// Set stores result under key with the given TTL, writing through to
// Redis when reachable and always mirroring into the local fallback so
// a later primary outage doesn't lose recently-cached entries.
func (c *Cache) Set(ctx context.Context, key domain.CacheKey, result *domain.PublicationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.fallback.Add(string(key), fallbackEntry{value: data, expiresAt: time.Now().Add(ttl)})
	c.mu.Unlock()

	if c.redis != nil {
		return c.redis.Set(ctx, string(key), data, ttl).Err()
	}
	return nil
}

// Invalidate removes every key (in both tiers) whose string form has
// the given prefix.
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	c.mu.Lock()
	for _, k := range c.fallback.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.fallback.Remove(k)
		}
	}
	c.mu.Unlock()

	if c.redis == nil {
		return nil
	}
	keys, err := c.redis.Keys(ctx, prefix+"*").Result()
	if err != nil || len(keys) == 0 {
		return err
	}
	return c.redis.Del(ctx, keys...).Err()
}

// Health reports whether the primary backend is reachable. A cache
// running fallback-only (no Redis configured, or Redis down) is
// considered degraded, not unhealthy: search() must keep working.
func (c *Cache) Health(ctx context.Context) (redisUp bool) {
	if c.redis == nil {
		return false
	}
	return c.redis.Ping(ctx).Err() == nil
}
