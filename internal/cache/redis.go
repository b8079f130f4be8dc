// Package cache wraps the Redis client used for rate limiting and the
// usage event stream. It never holds mutable domain state such as credit
// balances or onboarding flags; those are always read from Postgres.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPoolSize = 20

// Cache provides Redis access methods.
type Cache struct {
	client *redis.Client
}

// Option adjusts the client built by New.
type Option func(*redis.Options)

// WithPoolSize sets the connection pool size. The usage worker parks one
// connection in a blocking XREADGROUP, so the pool must leave room for
// request-path rate limit checks.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
			o.MinIdleConns = max(1, n/5)
		}
	}
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = defaultPoolSize
	opt.MinIdleConns = defaultPoolSize / 5
	opt.PoolTimeout = 2 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	for _, o := range opts {
		o(opt)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity for the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client for the usage stream.
func (c *Cache) Client() *redis.Client {
	return c.client
}
