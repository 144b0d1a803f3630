// internal/cache/redis.go

// Package cache provides a tiny Redis client wrapper for memoizing run results
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

// DefaultTTL is used when no TTL option is given
const DefaultTTL = 5 * time.Minute

// Cache wraps a Redis client for run result storage
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets the expiry of stored results. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithPrefix sets the key namespace
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// New creates a new Cache instance connected to the specified Redis address
// If addr is empty, defaults to localhost:6379
func New(ctx context.Context, addr string, opts ...Option) (*Cache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password by default
		DB:       0,  // Default DB
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return NewFromClient(client, opts...), nil
}

// NewFromClient wraps an existing client
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client, ttl: DefaultTTL, prefix: "sessiond"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelID identifies model content for cache keys, so results cached by a
// different version of a model at the same path are never served.
func ModelID(model []byte) string {
	sum := sha256.Sum256(model)
	return "sha256:" + hex.EncodeToString(sum[:])
}

type keyMaterial struct {
	Model   string      `json:"model"`
	Outputs []string    `json:"outputs"`
	Feed    engine.Feed `json:"feed"`
}

// Key derives a cache key from the model identity, the resolved output names
// and the feed. Map ordering does not affect the result.
func (c *Cache) Key(model string, outputNames []string, feed engine.Feed) (string, error) {
	// encoding/json sorts map keys, which makes the feed encoding canonical
	data, err := json.Marshal(keyMaterial{Model: model, Outputs: outputNames, Feed: feed})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:run:%s", c.prefix, hex.EncodeToString(sum[:])), nil
}

// Set stores run results under key with the configured TTL
func (c *Cache) Set(ctx context.Context, key string, results []*engine.Tensor) error {
	if c.client == nil {
		return fmt.Errorf("cache client is nil")
	}

	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store results for %s: %w", key, err)
	}

	return nil
}

// Get retrieves run results. A missing key returns ok=false and no error.
func (c *Cache) Get(ctx context.Context, key string) (results []*engine.Tensor, ok bool, err error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("cache client is nil")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // Key does not exist
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get results for %s: %w", key, err)
	}

	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached results for %s: %w", key, err)
	}
	return results, true, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
