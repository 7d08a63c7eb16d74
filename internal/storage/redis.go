package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scenario-simulator/internal/config"
	"github.com/scenario-simulator/internal/models"
)

// RedisCache wraps the Redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Set sets a key-value pair with TTL
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value by key
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Del deletes one or more keys
func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// Exists checks if a key exists
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, key).Result()
	return count > 0, err
}

// TimelineCache stores built timelines as JSON in Redis
type TimelineCache struct {
	cache  *RedisCache
	prefix string
	ttl    time.Duration
}

// NewTimelineCache creates a timeline cache. A zero ttl keeps entries until evicted.
func NewTimelineCache(cache *RedisCache, prefix string, ttl time.Duration) *TimelineCache {
	if prefix == "" {
		prefix = "scenario"
	}
	return &TimelineCache{cache: cache, prefix: prefix, ttl: ttl}
}

// Key returns the cache key of a scenario's timeline. The fingerprint names
// everything the built timeline depends on besides the scenario name, such as
// the source location and builder settings; it is folded in as a short hash.
func (c *TimelineCache) Key(scenario string, fingerprint ...string) string {
	key := fmt.Sprintf("%s:timeline:%s", c.prefix, scenario)
	if len(fingerprint) == 0 {
		return key
	}
	hash := sha256.Sum256([]byte(strings.Join(fingerprint, "\x00")))
	return key + ":" + hex.EncodeToString(hash[:6])
}

// GetTimeline returns the cached snapshot, or nil on a miss
func (c *TimelineCache) GetTimeline(ctx context.Context, key string) (*models.TimelineSnapshot, error) {
	data, err := c.cache.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached timeline: %w", err)
	}

	var snap models.TimelineSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		// a corrupt entry is dropped so the next build can replace it
		_ = c.cache.Del(ctx, key)
		return nil, fmt.Errorf("failed to decode cached timeline: %w", err)
	}
	return &snap, nil
}

// SetTimeline stores a snapshot under key
func (c *TimelineCache) SetTimeline(ctx context.Context, key string, snap models.TimelineSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	return c.cache.Set(ctx, key, data, c.ttl)
}

// Invalidate removes a cached timeline
func (c *TimelineCache) Invalidate(ctx context.Context, key string) error {
	return c.cache.Del(ctx, key)
}
