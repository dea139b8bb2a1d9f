package gateway

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
)

// Adapter wraps a Provider with the retry ladder and the circuit breaker.
// Every operation goes through the same path: a breaker check, then up to
// MaxRetries+1 attempts with exponential backoff over retryable errors.
type Adapter struct {
	provider Provider
	breaker  *CircuitBreaker
	cfg      config.GatewayConfig
	log      *zap.Logger
	metrics  *metrics.Metrics

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAdapter(provider Provider, cfg config.GatewayConfig, clk clock.Clock, log *zap.Logger, m *metrics.Metrics) *Adapter {
	return &Adapter{
		provider: provider,
		breaker:  NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery, clk),
		cfg:      cfg,
		log:      log,
		metrics:  m,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryDelay is min(base*2^attempt + jitter, max).
func (a *Adapter) retryDelay(attempt int) time.Duration {
	d := a.cfg.RetryBaseDelay * (1 << attempt)
	d += time.Duration(rand.Int63n(int64(time.Second)))
	if d > a.cfg.RetryMaxDelay {
		d = a.cfg.RetryMaxDelay
	}
	return d
}

func (a *Adapter) call(ctx context.Context, operation string, fn func(context.Context) (*Result, error)) (*Result, error) {
	if !a.breaker.Allow() {
		a.metrics.GatewayCallsTotal.WithLabelValues(operation, "circuit_open").Inc()
		return &Result{Status: StatusCircuitOpen, ErrorCode: CodeCircuitOpen}, nil
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			a.breaker.RecordSuccess()
			a.metrics.GatewayCallsTotal.WithLabelValues(operation, "ok").Inc()
			return res, nil
		}
		lastErr = err
		if !Retryable(err) {
			break
		}
		a.log.Warn("gateway call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < a.cfg.MaxRetries {
			if serr := a.sleep(ctx, a.retryDelay(attempt)); serr != nil {
				a.breaker.RecordFailure()
				a.metrics.GatewayCallsTotal.WithLabelValues(operation, "error").Inc()
				return nil, serr
			}
		}
	}

	a.breaker.RecordFailure()
	a.metrics.GatewayCallsTotal.WithLabelValues(operation, "error").Inc()
	return nil, lastErr
}

func (a *Adapter) Authorize(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (*Result, error) {
	return a.call(ctx, "authorize", func(ctx context.Context) (*Result, error) {
		return a.provider.Authorize(ctx, amount, currency, idempotencyKey)
	})
}

func (a *Adapter) Capture(ctx context.Context, ref string) (*Result, error) {
	return a.call(ctx, "capture", func(ctx context.Context) (*Result, error) {
		return a.provider.Capture(ctx, ref)
	})
}

func (a *Adapter) Refund(ctx context.Context, ref string, amount decimal.Decimal) (*Result, error) {
	return a.call(ctx, "refund", func(ctx context.Context) (*Result, error) {
		return a.provider.Refund(ctx, ref, amount)
	})
}

func (a *Adapter) GetStatus(ctx context.Context, ref string) (*Result, error) {
	return a.call(ctx, "get_status", func(ctx context.Context) (*Result, error) {
		return a.provider.GetStatus(ctx, ref)
	})
}

func (a *Adapter) ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	if !a.breaker.Allow() {
		return nil, &Error{Code: CodeCircuitOpen, Message: "circuit open"}
	}
	txs, err := a.provider.ListRecentTransactions(ctx, limit)
	if err != nil {
		a.breaker.RecordFailure()
		a.metrics.GatewayCallsTotal.WithLabelValues("list_transactions", "error").Inc()
		return nil, err
	}
	a.breaker.RecordSuccess()
	a.metrics.GatewayCallsTotal.WithLabelValues("list_transactions", "ok").Inc()
	return txs, nil
}
