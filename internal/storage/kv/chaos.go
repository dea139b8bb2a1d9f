package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChaosConfig is the per-tenant fault injection setting. A FailRate of 0.25
// rejects a quarter of requests with 503; LatencyMS is added to every request.
type ChaosConfig struct {
	Enabled   bool    `json:"enabled"`
	LatencyMS int     `json:"latency_ms"`
	FailRate  float64 `json:"fail_rate"`
}

// ChaosStore keeps chaos configuration in Redis so all instances apply the
// same faults.
type ChaosStore struct {
	rdb *redis.Client
}

func NewChaosStore(rdb *redis.Client) *ChaosStore {
	return &ChaosStore{rdb: rdb}
}

func chaosKey(tenantID string) string { return "chaos:" + tenantID }

// Get returns the tenant's chaos config, or a disabled config when none is set.
func (s *ChaosStore) Get(ctx context.Context, tenantID string) (*ChaosConfig, error) {
	val, err := s.rdb.Get(ctx, chaosKey(tenantID)).Bytes()
	if err == redis.Nil {
		return &ChaosConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chaos config: %w", err)
	}
	var cfg ChaosConfig
	if err := json.Unmarshal(val, &cfg); err != nil {
		return nil, fmt.Errorf("decoding chaos config: %w", err)
	}
	return &cfg, nil
}

func (s *ChaosStore) Set(ctx context.Context, tenantID string, cfg *ChaosConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding chaos config: %w", err)
	}
	if err := s.rdb.Set(ctx, chaosKey(tenantID), body, 0).Err(); err != nil {
		return fmt.Errorf("writing chaos config: %w", err)
	}
	return nil
}
