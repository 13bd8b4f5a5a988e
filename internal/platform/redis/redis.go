package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to allow future extensions.
type Client struct {
	*redis.Client
}

type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Open creates a new Redis client and pings it to validate the connection.
func Open(ctx context.Context, opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Client{Client: c}, nil
}

// Ping satisfies the readiness checker.
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Stats reports connection pool usage for the ops endpoint.
func (c *Client) Stats() map[string]interface{} {
	s := c.PoolStats()
	return map[string]interface{}{
		"addr":        c.Options().Addr,
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
		"hits":        s.Hits,
		"misses":      s.Misses,
		"timeouts":    s.Timeouts,
	}
}
