// Package redis builds the shared Redis client used by the refresh token
// store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/platform/config"
)

const connectTimeout = 5 * time.Second

// Client embeds *redis.Client and satisfies the HealthChecker interface used
// by the HTTP health endpoint.
type Client struct {
	*redis.Client
}

// New dials Redis from the configured URL and verifies the connection with a
// bounded ping. An empty URL means Redis is not configured and yields a nil
// client without error.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers pings.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
