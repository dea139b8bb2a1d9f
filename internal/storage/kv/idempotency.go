package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers the response body produced for an idempotency
// key so a replayed request gets the byte-identical answer back.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Key builds the storage key for one operation on one resource.
func (s *IdempotencyStore) Key(tenantID, operation, resource, idempotencyKey string) string {
	return fmt.Sprintf("idem:%s:%s:%s:%s", tenantID, operation, resource, idempotencyKey)
}

// Get returns the stored response and whether the key was present.
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading idempotency record: %w", err)
	}
	return val, true, nil
}

// Put stores the response with the configured TTL.
func (s *IdempotencyStore) Put(ctx context.Context, key string, body []byte) error {
	if err := s.rdb.Set(ctx, key, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing idempotency record: %w", err)
	}
	return nil
}
