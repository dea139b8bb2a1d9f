// Package config loads and validates the process configuration. The
// configuration is constructed once at startup and passed around as an
// immutable struct; business code never reads environment variables.
package config

import "time"

// Config is the complete paycored configuration.
type Config struct {
	AppEnv  string `mapstructure:"app_env"`
	AppName string `mapstructure:"app_name"`

	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rabbit   RabbitConfig   `mapstructure:"rabbitmq"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Recon    ReconConfig    `mapstructure:"reconciliation"`

	RateLimitReadPerMin   int `mapstructure:"rate_limit_read_per_min"`
	RateLimitWritePerMin  int `mapstructure:"rate_limit_write_per_min"`
	IdempotencyTTLSeconds int `mapstructure:"idempotency_ttl_seconds"`

	LogLevel string `mapstructure:"log_level"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig configures the KV store.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RabbitConfig configures the broker connection and topology.
type RabbitConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
	DLQ      string `mapstructure:"dlq"`

	// Optional external exchanges the consumer also binds to.
	OrdersExchange    string   `mapstructure:"orders_exchange"`
	OrdersRoutingKeys []string `mapstructure:"orders_routing_keys"`
	SaaSExchange      string   `mapstructure:"saas_exchange"`
	SaaSRoutingKeys   []string `mapstructure:"saas_routing_keys"`

	Prefetch  int           `mapstructure:"prefetch"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

// AuthConfig configures token issuance and verification.
type AuthConfig struct {
	JWTSecret           string `mapstructure:"jwt_secret"`
	JWTIssuer           string `mapstructure:"jwt_issuer"`
	TokenExpiresSeconds int    `mapstructure:"token_expires_seconds"`
}

// GatewayConfig configures the payment gateway adapter.
type GatewayConfig struct {
	Provider         string        `mapstructure:"provider"` // fake | stripe
	StripeAPIKey     string        `mapstructure:"stripe_api_key"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerRecovery  time.Duration `mapstructure:"breaker_recovery"`
	FakeFailRate     float64       `mapstructure:"fake_fail_rate"`
}

// OutboxConfig tunes the outbox dispatcher.
type OutboxConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// WebhookConfig tunes the webhook dispatcher.
type WebhookConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

// ReconConfig tunes the reconciliation scheduler.
type ReconConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}
