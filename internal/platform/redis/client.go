// Package redis builds the shared go-redis client behind the redis session
// cache backend.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"groundtruth/internal/platform/config"
)

// Client wraps go-redis so callers get a health check alongside the raw
// commands.
type Client struct {
	*redis.Client
}

// New dials Redis from the configuration. An empty URL returns a nil client
// and no error; callers treat that as "not configured".
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

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
