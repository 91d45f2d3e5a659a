package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// scanBatch is the COUNT hint for SCAN; KEYS would block the server
const scanBatch = 200

// goRedis adapts a go-redis client to RedisClient
type goRedis struct {
	client *redis.Client
}

// dialRedis connects to redis://[:password@]host:port[/db] (rediss:// for TLS)
// and verifies the server answers before returning.
func dialRedis(redisURL string) (*goRedis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &goRedis{client: client}, nil
}

func (r *goRedis) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *goRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *goRedis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Keys walks the keyspace with SCAN
func (r *goRedis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (r *goRedis) Close() error {
	return r.client.Close()
}

// NewRedisCacheFromURL creates a RedisCache backed by the server at redisURL
func NewRedisCacheFromURL(redisURL string, config *CacheConfig) (*RedisCache, error) {
	client, err := dialRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisCacheWithClient(client, config), nil
}
