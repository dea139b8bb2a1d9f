package config

import (
	"errors"
	"fmt"
)

var (
	errMissingDatabaseURL = errors.New("database.url is required")
	errMissingRedisURL    = errors.New("redis.url is required")
	errMissingRabbitURL   = errors.New("rabbitmq.url is required")
	errMissingJWTSecret   = errors.New("auth.jwt_secret is required")
)

// Validate checks the loaded configuration for values the process cannot
// start without.
func Validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return errMissingDatabaseURL
	}
	if cfg.Redis.URL == "" {
		return errMissingRedisURL
	}
	if cfg.Rabbit.URL == "" {
		return errMissingRabbitURL
	}
	if cfg.Auth.JWTSecret == "" {
		return errMissingJWTSecret
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port: %d", cfg.HTTP.Port)
	}
	if cfg.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be > 0, got %d", cfg.Outbox.BatchSize)
	}
	if cfg.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox.max_attempts must be > 0, got %d", cfg.Outbox.MaxAttempts)
	}
	if cfg.Gateway.Provider != "fake" && cfg.Gateway.Provider != "stripe" {
		return fmt.Errorf("unknown gateway.provider: %q", cfg.Gateway.Provider)
	}
	if cfg.Gateway.MaxRetries < 0 {
		return fmt.Errorf("gateway.max_retries must be >= 0, got %d", cfg.Gateway.MaxRetries)
	}
	if cfg.Webhook.HTTPTimeout.Seconds() > 30 {
		return fmt.Errorf("webhook.http_timeout must be <= 30s, got %s", cfg.Webhook.HTTPTimeout)
	}
	if cfg.IdempotencyTTLSeconds <= 0 {
		return fmt.Errorf("idempotency_ttl_seconds must be > 0, got %d", cfg.IdempotencyTTLSeconds)
	}
	return nil
}
