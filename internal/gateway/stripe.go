package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"

	"github.com/brunopk/paycore/internal/config"
)

// StripeProvider implements Provider on the Stripe API. Amounts are converted
// to minor units before hitting the API.
type StripeProvider struct{}

func NewStripeProvider(cfg config.GatewayConfig) *StripeProvider {
	stripe.Key = cfg.StripeAPIKey
	return &StripeProvider{}
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// classify maps a Stripe error onto the adapter's error codes.
func classify(err error) error {
	var sErr *stripe.Error
	if !errors.As(err, &sErr) {
		return &Error{Code: CodeAPIConnection, Message: err.Error()}
	}
	switch sErr.Type {
	case stripe.ErrorTypeAPI:
		return &Error{Code: CodeAPIError, Message: sErr.Msg}
	case stripe.ErrorTypeCard:
		return &Error{Code: CodeCardDeclined, Message: sErr.Msg}
	default:
		if sErr.Code == stripe.ErrorCodeRateLimit {
			return &Error{Code: CodeRateLimit, Message: sErr.Msg}
		}
		return &Error{Code: string(sErr.Type), Message: sErr.Msg}
	}
}

func mapIntentStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusRequiresCapture:
		return StatusRequiresCapture
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return StatusFailed
	default:
		return string(status)
	}
}

func (p *StripeProvider) Authorize(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (*Result, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(minorUnits(amount)),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return &Result{Status: mapIntentStatus(pi.Status), Ref: pi.ID}, nil
}

func (p *StripeProvider) Capture(ctx context.Context, ref string) (*Result, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	pi, err := paymentintent.Capture(ref, params)
	if err != nil {
		return nil, classify(err)
	}
	return &Result{Status: mapIntentStatus(pi.Status), Ref: pi.ID}, nil
}

func (p *StripeProvider) Refund(ctx context.Context, ref string, amount decimal.Decimal) (*Result, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(ref),
		Amount:        stripe.Int64(minorUnits(amount)),
	}
	params.Context = ctx
	r, err := refund.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return &Result{Status: string(r.Status), Ref: r.ID}, nil
}

func (p *StripeProvider) GetStatus(ctx context.Context, ref string) (*Result, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(ref, params)
	if err != nil {
		return nil, classify(err)
	}
	return &Result{Status: mapIntentStatus(pi.Status), Ref: pi.ID}, nil
}

func (p *StripeProvider) ListRecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	params := &stripe.PaymentIntentListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var txs []Transaction
	iter := paymentintent.List(params)
	for iter.Next() {
		pi := iter.PaymentIntent()
		txs = append(txs, Transaction{
			Ref:      pi.ID,
			Amount:   decimal.NewFromInt(pi.Amount).Div(decimal.NewFromInt(100)),
			Currency: string(pi.Currency),
			Status:   string(pi.Status),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err)
	}
	return txs, nil
}
