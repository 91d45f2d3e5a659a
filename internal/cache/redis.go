// Package cache provides Redis-based caching for open-lovable
// Falls back to an in-process map when Redis is not configured or fails
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"open-lovable/internal/metrics"
)

// ErrCacheMiss is returned when a key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// RedisCache provides a Redis-compatible caching layer
// Falls back to in-memory cache when Redis is unavailable
type RedisCache struct {
	name string

	// In-memory fallback cache
	memCache map[string]*cacheEntry
	memMu    sync.RWMutex

	// Redis connection (nil if not available)
	redisClient RedisClient

	defaultTTL time.Duration
	maxMemSize int

	hits    int64
	misses  int64
	statsMu sync.RWMutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// RedisClient is the subset of Redis the cache uses
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// cacheEntry represents a cached item with expiration
type cacheEntry struct {
	Value     []byte
	ExpiresAt time.Time
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	// Name labels hit/miss metrics
	Name string

	// Default TTL for cached items
	DefaultTTL time.Duration

	// Maximum in-memory cache size (number of items)
	MaxMemoryItems int
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Name:           "default",
		DefaultTTL:     10 * time.Minute,
		MaxMemoryItems: 1000,
	}
}

// NewRedisCache creates a memory-only cache instance
func NewRedisCache(config *CacheConfig) *RedisCache {
	return NewRedisCacheWithClient(nil, config)
}

// NewRedisCacheWithClient creates a cache with an existing Redis client
func NewRedisCacheWithClient(client RedisClient, config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	name := config.Name
	if name == "" {
		name = "default"
	}
	maxItems := config.MaxMemoryItems
	if maxItems <= 0 {
		maxItems = 1000
	}

	cache := &RedisCache{
		name:        name,
		memCache:    make(map[string]*cacheEntry),
		redisClient: client,
		defaultTTL:  config.DefaultTTL,
		maxMemSize:  maxItems,
		stopCh:      make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	// Try Redis first if available
	if c.redisClient != nil {
		val, err := c.redisClient.Get(ctx, key)
		if err == nil {
			c.recordHit()
			return []byte(val), nil
		}
	}

	// Fall back to memory cache
	c.memMu.RLock()
	entry, exists := c.memCache[key]
	c.memMu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, ErrCacheMiss
	}

	if time.Now().After(entry.ExpiresAt) {
		c.memMu.Lock()
		delete(c.memCache, key)
		c.memMu.Unlock()
		c.recordMiss()
		return nil, ErrCacheMiss
	}

	c.recordHit()
	return entry.Value, nil
}

// Set stores a value in cache with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if c.redisClient != nil {
		if err := c.redisClient.Set(ctx, key, string(value), ttl); err == nil {
			return nil
		}
		// Fall through to memory cache on Redis error
	}

	c.memMu.Lock()
	defer c.memMu.Unlock()

	if _, exists := c.memCache[key]; !exists && len(c.memCache) >= c.maxMemSize {
		c.evictOldest()
	}

	c.memCache[key] = &cacheEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	var err error
	if c.redisClient != nil {
		err = c.redisClient.Del(ctx, key)
	}

	c.memMu.Lock()
	delete(c.memCache, key)
	c.memMu.Unlock()

	return err
}

// DeletePattern removes all keys matching a trailing-* pattern from both
// tiers. A Redis failure is returned after the memory tier is cleared.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	var err error
	if c.redisClient != nil {
		var keys []string
		if keys, err = c.redisClient.Keys(ctx, pattern); err == nil {
			err = c.redisClient.Del(ctx, keys...)
		}
	}

	c.memMu.Lock()
	for key := range c.memCache {
		if matchPattern(pattern, key) {
			delete(c.memCache, key)
		}
	}
	c.memMu.Unlock()

	return err
}

// GetJSON retrieves and unmarshals a JSON value
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON marshals and stores a JSON value
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// Stats returns cache statistics
func (c *RedisCache) Stats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()

	c.memMu.RLock()
	memSize := len(c.memCache)
	c.memMu.RUnlock()

	total := c.hits + c.misses
	hitRatio := float64(0)
	if total > 0 {
		hitRatio = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Hits:       c.hits,
		Misses:     c.misses,
		HitRatio:   hitRatio,
		MemorySize: memSize,
		Redis:      c.redisClient != nil,
	}
}

// CacheStats holds cache statistics
type CacheStats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRatio   float64 `json:"hit_ratio"`
	MemorySize int     `json:"memory_size"`
	Redis      bool    `json:"redis"`
}

// Close stops the cleanup loop and closes Redis
func (c *RedisCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.redisClient != nil {
		return c.redisClient.Close()
	}
	return nil
}

func (c *RedisCache) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
	metrics.Get().RecordCacheOperation(c.name, true)
}

func (c *RedisCache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
	metrics.Get().RecordCacheOperation(c.name, false)
}

// evictOldest drops expired entries first, then the earliest-expiring ones
func (c *RedisCache) evictOldest() {
	toEvict := c.maxMemSize / 10
	if toEvict < 1 {
		toEvict = 1
	}

	now := time.Now()
	evicted := 0

	for key, entry := range c.memCache {
		if evicted >= toEvict {
			break
		}
		if now.After(entry.ExpiresAt) {
			delete(c.memCache, key)
			evicted++
		}
	}

	for evicted < toEvict && len(c.memCache) > 0 {
		var oldestKey string
		var oldest time.Time
		for key, entry := range c.memCache {
			if oldestKey == "" || entry.ExpiresAt.Before(oldest) {
				oldestKey, oldest = key, entry.ExpiresAt
			}
		}
		delete(c.memCache, oldestKey)
		evicted++
	}
}

func (c *RedisCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *RedisCache) cleanup() {
	c.memMu.Lock()
	defer c.memMu.Unlock()

	now := time.Now()
	for key, entry := range c.memCache {
		if now.After(entry.ExpiresAt) {
			delete(c.memCache, key)
		}
	}
}

// matchPattern provides simple glob-style matching for cache keys
func matchPattern(pattern, key string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}

	return pattern == key
}
