package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the session Redis and verifies it with a ping.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		// Fall back to simple connection
		opts = &redis.Options{
			Addr: url,
		}
	}

	// A single CLI process needs only a small pool.
	opts.PoolSize = 4
	opts.MinIdleConns = 1
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	if err := RedisHealthCheck(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	slog.Debug("connected to redis", "addr", opts.Addr)
	return client, nil
}

// RedisHealthCheck performs a health check on Redis connection
func RedisHealthCheck(ctx context.Context, client redis.Cmdable) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}
