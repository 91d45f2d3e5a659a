package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"open-lovable/internal/logging"
)

// ScrapeCache caches enhanced scrape results keyed by URL and options
type ScrapeCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewScrapeCache creates a scrape cache over cache
func NewScrapeCache(cache *RedisCache, ttl time.Duration) *ScrapeCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ScrapeCache{cache: cache, ttl: ttl}
}

// OpenScrapeCache connects to redisURL when set and falls back to memory
// when it is empty or unreachable
func OpenScrapeCache(redisURL string, ttl time.Duration) *ScrapeCache {
	cfg := &CacheConfig{Name: "scrape", DefaultTTL: ttl, MaxMemoryItems: 500}
	if redisURL == "" {
		return NewScrapeCache(NewRedisCache(cfg), ttl)
	}
	rc, err := NewRedisCacheFromURL(redisURL, cfg)
	if err != nil {
		logging.L().Warn("redis unavailable, using in-memory scrape cache", zap.Error(err))
		return NewScrapeCache(NewRedisCache(cfg), ttl)
	}
	logging.L().Info("scrape cache connected to redis")
	return NewScrapeCache(rc, ttl)
}

const scrapeKeyPrefix = "scrape:"

func shortHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// urlPrefix is shared by every cached variant of url
func urlPrefix(url string) string {
	return scrapeKeyPrefix + shortHash([]byte(url)) + ":"
}

// ScrapeCacheKey derives the cache key for url and options as
// scrape:<url hash>:<options hash>
func ScrapeCacheKey(url string, options map[string]any) string {
	// encoding/json sorts map keys, so equal options hash equally
	opts, err := json.Marshal(options)
	if err != nil || len(options) == 0 {
		opts = []byte("{}")
	}
	return urlPrefix(url) + shortHash(opts)
}

// Get loads a cached result into dest and reports whether one was found.
// An entry that no longer decodes is dropped.
func (sc *ScrapeCache) Get(ctx context.Context, url string, options map[string]any, dest interface{}) bool {
	key := ScrapeCacheKey(url, options)
	err := sc.cache.GetJSON(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		logging.L().Warn("dropping unreadable scrape cache entry", zap.String("key", key), zap.Error(err))
		_ = sc.cache.Delete(ctx, key)
	}
	return false
}

// Invalidate drops every cached result for url, whatever the options
func (sc *ScrapeCache) Invalidate(ctx context.Context, url string) error {
	return sc.cache.DeletePattern(ctx, urlPrefix(url)+"*")
}

// Purge drops all cached scrape results
func (sc *ScrapeCache) Purge(ctx context.Context) error {
	return sc.cache.DeletePattern(ctx, scrapeKeyPrefix+"*")
}

// Set stores a result
func (sc *ScrapeCache) Set(ctx context.Context, url string, options map[string]any, value interface{}) error {
	return sc.cache.SetJSON(ctx, ScrapeCacheKey(url, options), value, sc.ttl)
}

// Stats returns the underlying cache statistics
func (sc *ScrapeCache) Stats() CacheStats {
	return sc.cache.Stats()
}

// Close releases the underlying cache
func (sc *ScrapeCache) Close() error {
	return sc.cache.Close()
}
