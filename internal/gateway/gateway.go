// Package gateway talks to the external payment provider. The Adapter wraps a
// concrete Provider with retries over transient errors and a circuit breaker.
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Result statuses reported by providers.
const (
	StatusSucceeded       = "succeeded"
	StatusRequiresCapture = "requires_capture"
	StatusFailed          = "failed"
	StatusCircuitOpen     = "circuit_open"
)

// Error codes the adapter treats as transient.
const (
	CodeRateLimit     = "rate_limit"
	CodeAPIConnection = "api_connection_error"
	CodeAPIError      = "api_error"
	CodeTimeout       = "timeout"
	CodeCardDeclined  = "card_declined"
	CodeCircuitOpen   = "circuit_open"
)

var retryableCodes = map[string]bool{
	CodeRateLimit:     true,
	CodeAPIConnection: true,
	CodeAPIError:      true,
	CodeTimeout:       true,
}

// Error is a classified provider failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
}

// Retryable reports whether err is a transient gateway error.
func Retryable(err error) bool {
	gwErr, ok := err.(*Error)
	return ok && retryableCodes[gwErr.Code]
}

// Result is the outcome of one gateway operation.
type Result struct {
	Status    string
	Ref       string
	ErrorCode string
}

// Transaction is one remote charge as seen by the provider, used by
// reconciliation.
type Transaction struct {
	Ref      string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// Provider is a concrete payment backend.
type Provider interface {
	Authorize(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (*Result, error)
	Capture(ctx context.Context, ref string) (*Result, error)
	Refund(ctx context.Context, ref string, amount decimal.Decimal) (*Result, error)
	GetStatus(ctx context.Context, ref string) (*Result, error)
	// ListRecentTransactions returns the provider-side charges reconciliation
	// compares against.
	ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error)
}
