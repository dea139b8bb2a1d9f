// Package kv wraps the Redis-backed stores: idempotency records, rate limit
// buckets and chaos configuration.
package kv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/brunopk/paycore/internal/config"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}
