// Package redis connects the ownership cache to Redis.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"idstatus/internal/platform/config"
)

const clientName = "idstatus"

// Client is a go-redis client that has answered a ping.
type Client struct {
	*redis.Client
}

// New dials cfg.URL and pings it. An empty URL means caching is disabled
// and New returns (nil, nil).
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Client{Client: client}, nil
}

// Options overlays the pool and timeout settings of cfg on the URL.
// Zero values keep the go-redis defaults.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.ClientName = clientName
	opts.MinIdleConns = cfg.MinIdleConns
	for _, o := range []struct {
		set bool
		fn  func()
	}{
		{cfg.PoolSize > 0, func() { opts.PoolSize = cfg.PoolSize }},
		{cfg.DialTimeout > 0, func() { opts.DialTimeout = cfg.DialTimeout }},
		{cfg.ReadTimeout > 0, func() { opts.ReadTimeout = cfg.ReadTimeout }},
		{cfg.WriteTimeout > 0, func() { opts.WriteTimeout = cfg.WriteTimeout }},
	} {
		if o.set {
			o.fn()
		}
	}
	return opts, nil
}

// Health pings the server; it backs the /healthz redis check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
