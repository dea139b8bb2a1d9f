package gateway

import (
	"sync"
	"time"

	"github.com/brunopk/paycore/internal/shared/clock"
)

// CircuitBreaker opens after threshold consecutive failures and lets traffic
// through again once the recovery window has passed. The first call after
// recovery resets the failure count, so a single success closes the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	clk       clock.Clock

	failures int
	openedAt time.Time
}

func NewCircuitBreaker(threshold int, recovery time.Duration, clk clock.Clock) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, recovery: recovery, clk: clk}
}

// Allow reports whether a call may proceed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	if b.clk.Now().Sub(b.openedAt) >= b.recovery {
		b.failures = 0
		return true
	}
	return false
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures == b.threshold {
		b.openedAt = b.clk.Now()
	}
}
