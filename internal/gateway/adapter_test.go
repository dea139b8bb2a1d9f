package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
)

// scriptedProvider returns canned responses per call; the last response
// repeats once the script runs out.
type scriptedProvider struct {
	FakeProvider
	calls   int
	results []func() (*Result, error)
}

func (p *scriptedProvider) Authorize(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (*Result, error) {
	idx := p.calls
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	p.calls++
	return p.results[idx]()
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Provider:         "fake",
		MaxRetries:       3,
		RetryBaseDelay:   10 * time.Millisecond,
		RetryMaxDelay:    50 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerRecovery:  30 * time.Second,
	}
}

func newTestAdapter(p Provider, clk clock.Clock) *Adapter {
	a := NewAdapter(p, testGatewayConfig(), clk, zap.NewNop(), metrics.New())
	a.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return a
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	transient := func() (*Result, error) {
		return nil, &Error{Code: CodeRateLimit, Message: "slow down"}
	}
	ok := func() (*Result, error) {
		return &Result{Status: StatusRequiresCapture, Ref: "ch_1"}, nil
	}
	p := &scriptedProvider{results: []func() (*Result, error){transient, transient, ok}}
	a := newTestAdapter(p, clk)

	res, err := a.Authorize(context.Background(), decimal.NewFromInt(10), "BRL", "idem-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresCapture, res.Status)
	assert.Equal(t, "ch_1", res.Ref)
}

func TestNonRetryableErrorFailsFast(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	p := &scriptedProvider{results: []func() (*Result, error){
		func() (*Result, error) { return nil, &Error{Code: CodeCardDeclined, Message: "declined"} },
	}}
	a := newTestAdapter(p, clk)

	_, err := a.Authorize(context.Background(), decimal.NewFromInt(10), "BRL", "idem-1")
	require.Error(t, err)
	assert.Equal(t, 1, p.calls, "declines must not be retried")
}

func TestRetriesExhaustedReturnsLastError(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	p := &scriptedProvider{results: []func() (*Result, error){
		func() (*Result, error) { return nil, &Error{Code: CodeTimeout, Message: "timed out"} },
	}}
	a := newTestAdapter(p, clk)

	_, err := a.Authorize(context.Background(), decimal.NewFromInt(10), "BRL", "idem-1")
	require.Error(t, err)
	gwErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeTimeout, gwErr.Code)
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	p := &scriptedProvider{results: []func() (*Result, error){
		func() (*Result, error) { return nil, &Error{Code: CodeAPIConnection, Message: "down"} },
	}}
	a := newTestAdapter(p, clk)
	ctx := context.Background()

	// Each failed call (with its retries exhausted) counts one breaker failure.
	for i := 0; i < 5; i++ {
		_, err := a.Authorize(ctx, decimal.NewFromInt(10), "BRL", "")
		require.Error(t, err)
	}

	// The circuit is open: calls return a circuit_open result, not an error.
	res, err := a.Authorize(ctx, decimal.NewFromInt(10), "BRL", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCircuitOpen, res.Status)
	assert.Equal(t, CodeCircuitOpen, res.ErrorCode)

	// After the recovery window the call goes through again.
	clk.Advance(31 * time.Second)
	p.results = []func() (*Result, error){
		func() (*Result, error) { return &Result{Status: StatusSucceeded, Ref: "ch_9"}, nil },
	}
	p.calls = 0
	res, err = a.Authorize(ctx, decimal.NewFromInt(10), "BRL", "")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(&Error{Code: CodeRateLimit}))
	assert.True(t, Retryable(&Error{Code: CodeAPIConnection}))
	assert.True(t, Retryable(&Error{Code: CodeAPIError}))
	assert.True(t, Retryable(&Error{Code: CodeTimeout}))
	assert.False(t, Retryable(&Error{Code: CodeCardDeclined}))
	assert.False(t, Retryable(&Error{Code: "not_found"}))
	assert.False(t, Retryable(context.DeadlineExceeded))
}

func TestFakeProviderIdempotentAuthorize(t *testing.T) {
	p := NewFakeProvider(0, 1)
	ctx := context.Background()

	first, err := p.Authorize(ctx, decimal.NewFromInt(20), "BRL", "idem-key")
	require.NoError(t, err)
	second, err := p.Authorize(ctx, decimal.NewFromInt(20), "BRL", "idem-key")
	require.NoError(t, err)
	assert.Equal(t, first.Ref, second.Ref, "same idempotency key must replay the same charge")

	third, err := p.Authorize(ctx, decimal.NewFromInt(20), "BRL", "other-key")
	require.NoError(t, err)
	assert.NotEqual(t, first.Ref, third.Ref)
}

func TestFakeProviderCaptureLifecycle(t *testing.T) {
	p := NewFakeProvider(0, 1)
	ctx := context.Background()

	res, err := p.Authorize(ctx, decimal.NewFromInt(20), "BRL", "")
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresCapture, res.Status)

	captured, err := p.Capture(ctx, res.Ref)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, captured.Status)

	status, err := p.GetStatus(ctx, res.Ref)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, status.Status)

	txs, err := p.ListRecentTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, res.Ref, txs[0].Ref)

	_, err = p.Capture(ctx, "ch_unknown")
	assert.Error(t, err)
}
