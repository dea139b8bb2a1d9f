// Package payment owns the payment intent state machine. Every transition
// posts its ledger and outbox effects inside one database transaction, so a
// partial failure leaves no event and no ledger row behind.
package payment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// Service drives payment intents through their lifecycle.
type Service struct {
	db  ledgerdb.Manager
	clk clock.Clock
	log *zap.Logger
	met *metrics.Metrics
}

func NewService(db ledgerdb.Manager, clk clock.Clock, log *zap.Logger, met *metrics.Metrics) *Service {
	return &Service{db: db, clk: clk, log: log, met: met}
}

// Create inserts a new intent in status CREATED together with its
// payment.intent.created outbox event.
func (s *Service) Create(ctx context.Context, tenantID string, amount decimal.Decimal, currency, customerRef string) (*ledgerdb.PaymentIntent, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, problem.New(problem.KindInvalidArgument, "amount must be positive", "/v1/payment-intents")
	}
	if !ledgerdb.SupportedCurrencies[currency] {
		return nil, problem.Newf(problem.KindInvalidArgument, "/v1/payment-intents", "unsupported currency %q", currency)
	}

	now := s.clk.Now()
	pi := &ledgerdb.PaymentIntent{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Amount:      amount,
		Currency:    currency,
		Status:      ledgerdb.IntentCreated,
		CustomerRef: customerRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		if err := tc.PaymentIntents().Insert(ctx, pi); err != nil {
			return err
		}
		return s.emit(ctx, tc, pi.TenantID, "payment.intent.created", pi.ID.String(), map[string]any{
			"payment_intent_id": pi.ID.String(),
			"amount":            pi.Amount.StringFixed(2),
			"currency":          pi.Currency,
			"customer_ref":      pi.CustomerRef,
		})
	})
	if err != nil {
		return nil, err
	}
	s.met.PaymentIntentsCreatedTotal.WithLabelValues(tenantID).Inc()
	s.log.Info("payment intent created",
		zap.String("payment_intent_id", pi.ID.String()),
		zap.String("tenant_id", tenantID))
	return pi, nil
}

// Get fetches one intent.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.PaymentIntent, error) {
	pi, err := s.db.PaymentIntents().Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if pi == nil {
		return nil, problem.New(problem.KindNotFound, "payment intent not found", "/v1/payment-intents/"+id.String())
	}
	return pi, nil
}

// Confirm transitions CREATED to AUTHORIZED. Confirming a SETTLED or FAILED
// intent returns the current state unchanged; any other status is a conflict.
func (s *Service) Confirm(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.PaymentIntent, error) {
	var result *ledgerdb.PaymentIntent
	instance := "/v1/payment-intents/" + id.String() + "/confirm"

	err := s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		pi, err := tc.PaymentIntents().GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if pi == nil {
			return problem.New(problem.KindNotFound, "payment intent not found", instance)
		}

		switch pi.Status {
		case ledgerdb.IntentSettled, ledgerdb.IntentFailed:
			result = pi
			return nil
		case ledgerdb.IntentCreated:
		default:
			return problem.Newf(problem.KindConflict, instance, "cannot confirm intent in status %s", pi.Status)
		}

		pi.Status = ledgerdb.IntentAuthorized
		pi.UpdatedAt = s.clk.Now()
		if err := tc.PaymentIntents().Update(ctx, pi); err != nil {
			return err
		}
		result = pi

		return s.emit(ctx, tc, pi.TenantID, "payment.authorized", pi.ID.String(), map[string]any{
			"payment_intent_id": pi.ID.String(),
			"amount":            pi.Amount.StringFixed(2),
			"currency":          pi.Currency,
			"customer_ref":      pi.CustomerRef,
		})
	})
	if err != nil {
		return nil, err
	}
	s.met.PaymentIntentsConfirmedTotal.WithLabelValues(tenantID).Inc()
	return result, nil
}

// PostLedgerForAuthorized settles an AUTHORIZED intent: it posts the balanced
// DEBIT CASH / CREDIT REVENUE entry, flips the status and emits
// payment.settled. Intents in any other status are left untouched.
func (s *Service) PostLedgerForAuthorized(ctx context.Context, tenantID string, id uuid.UUID) error {
	return s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		pi, err := tc.PaymentIntents().GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if pi == nil {
			return problem.New(problem.KindNotFound, "payment intent not found", "/internal/post-ledger/"+id.String())
		}
		if pi.Status != ledgerdb.IntentAuthorized {
			s.log.Info("skipping ledger post, intent not authorized",
				zap.String("payment_intent_id", pi.ID.String()),
				zap.String("status", string(pi.Status)))
			return nil
		}

		cash, err := s.resolveAccount(ctx, tc, tenantID, ledgerdb.AccountCash)
		if err != nil {
			return err
		}
		revenue, err := s.resolveAccount(ctx, tc, tenantID, ledgerdb.AccountRevenue)
		if err != nil {
			return err
		}

		now := s.clk.Now()
		entry := balancedEntry(tenantID, pi.ID, now,
			line(tenantID, ledgerdb.SideDebit, cash, pi.Amount, pi.Currency),
			line(tenantID, ledgerdb.SideCredit, revenue, pi.Amount, pi.Currency))
		if err := tc.Ledger().InsertEntry(ctx, entry); err != nil {
			return err
		}

		pi.Status = ledgerdb.IntentSettled
		pi.UpdatedAt = now
		if err := tc.PaymentIntents().Update(ctx, pi); err != nil {
			return err
		}

		return s.emit(ctx, tc, tenantID, "payment.settled", pi.ID.String(), map[string]any{
			"order_id":          orderID(pi.CustomerRef),
			"tenant_id":         tenantID,
			"payment_intent_id": pi.ID.String(),
			"status":            string(ledgerdb.IntentSettled),
			"amount":            pi.Amount.StringFixed(2),
			"currency":          pi.Currency,
		})
	})
}

// Refund reverses part or all of a settled payment. The refund row, the
// balanced ledger entry, the intent transition and the outbox event all land
// in one transaction.
func (s *Service) Refund(ctx context.Context, tenantID string, id uuid.UUID, amount decimal.Decimal, reason string) (*ledgerdb.Refund, error) {
	instance := "/v1/payment-intents/" + id.String() + "/refund"
	var refund *ledgerdb.Refund

	err := s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		pi, err := tc.PaymentIntents().GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if pi == nil {
			return problem.New(problem.KindNotFound, "payment intent not found", instance)
		}
		if pi.Status != ledgerdb.IntentSettled && pi.Status != ledgerdb.IntentPartiallyRefunded {
			return problem.Newf(problem.KindConflict, instance, "cannot refund intent in status %s", pi.Status)
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return problem.New(problem.KindInvalidArgument, "refund amount must be positive", instance)
		}

		refunded, err := tc.Refunds().SumActive(ctx, tenantID, pi.ID)
		if err != nil {
			return err
		}
		if refunded.Add(amount).GreaterThan(pi.Amount) {
			return problem.Newf(problem.KindUnprocessable, instance,
				"cumulative refunds %s would exceed intent amount %s",
				refunded.Add(amount).StringFixed(2), pi.Amount.StringFixed(2))
		}

		now := s.clk.Now()
		refund = &ledgerdb.Refund{
			ID:              uuid.New(),
			TenantID:        tenantID,
			PaymentIntentID: pi.ID,
			Amount:          amount,
			Reason:          reason,
			Status:          ledgerdb.RefundPending,
			CreatedAt:       now,
		}
		if err := tc.Refunds().Insert(ctx, refund); err != nil {
			return err
		}

		refundExpense, err := s.resolveAccount(ctx, tc, tenantID, ledgerdb.AccountRefundExpense)
		if err != nil {
			return err
		}
		cash, err := s.resolveAccount(ctx, tc, tenantID, ledgerdb.AccountCash)
		if err != nil {
			return err
		}
		entry := balancedEntry(tenantID, pi.ID, now,
			line(tenantID, ledgerdb.SideDebit, refundExpense, amount, pi.Currency),
			line(tenantID, ledgerdb.SideCredit, cash, amount, pi.Currency))
		if err := tc.Ledger().InsertEntry(ctx, entry); err != nil {
			return err
		}

		if refunded.Add(amount).Equal(pi.Amount) {
			pi.Status = ledgerdb.IntentRefunded
		} else {
			pi.Status = ledgerdb.IntentPartiallyRefunded
		}
		pi.UpdatedAt = now
		if err := tc.PaymentIntents().Update(ctx, pi); err != nil {
			return err
		}

		refund.Status = ledgerdb.RefundCompleted
		if err := tc.Refunds().Update(ctx, refund); err != nil {
			return err
		}

		return s.emit(ctx, tc, tenantID, "payment.refunded", pi.ID.String(), map[string]any{
			"payment_intent_id": pi.ID.String(),
			"refund_id":         refund.ID.String(),
			"amount":            amount.StringFixed(2),
			"currency":          pi.Currency,
			"reason":            reason,
			"payment_status":    string(pi.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// ListRefunds returns the refunds of one intent, oldest first.
func (s *Service) ListRefunds(ctx context.Context, tenantID string, id uuid.UUID) ([]ledgerdb.Refund, error) {
	pi, err := s.db.PaymentIntents().Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if pi == nil {
		return nil, problem.New(problem.KindNotFound, "payment intent not found", "/v1/payment-intents/"+id.String()+"/refunds")
	}
	return s.db.Refunds().List(ctx, tenantID, id)
}

// Charge is the normalized inbound charge request.
type Charge struct {
	OrderID     string
	TenantID    string
	Amount      decimal.Decimal
	Currency    string
	CustomerRef string
}

// CreateFromCharge handles inbound charge_requested/order.confirmed events.
// The charge was pre-authorized upstream, so the intent is inserted directly
// in AUTHORIZED and payment.authorized is emitted. Dedupe runs on the
// customer_ref "order:<order_id>": a second event for the same order is a
// logged no-op.
func (s *Service) CreateFromCharge(ctx context.Context, charge Charge) error {
	customerRef := "order:" + charge.OrderID
	if charge.CustomerRef != "" {
		customerRef = charge.CustomerRef
	}

	return s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		existing, err := tc.PaymentIntents().GetByCustomerRef(ctx, charge.TenantID, customerRef)
		if err != nil {
			return err
		}
		if existing != nil {
			s.log.Info("duplicate charge request ignored",
				zap.String("tenant_id", charge.TenantID),
				zap.String("customer_ref", customerRef),
				zap.String("payment_intent_id", existing.ID.String()))
			return nil
		}
		if charge.Amount.LessThanOrEqual(decimal.Zero) {
			return problem.New(problem.KindInvalidArgument, "charge amount must be positive", "charge")
		}
		currency := charge.Currency
		if currency == "" {
			currency = "BRL"
		}

		now := s.clk.Now()
		pi := &ledgerdb.PaymentIntent{
			ID:          uuid.New(),
			TenantID:    charge.TenantID,
			Amount:      charge.Amount,
			Currency:    currency,
			Status:      ledgerdb.IntentAuthorized,
			CustomerRef: customerRef,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tc.PaymentIntents().Insert(ctx, pi); err != nil {
			return err
		}
		s.met.PaymentIntentsCreatedTotal.WithLabelValues(charge.TenantID).Inc()

		return s.emit(ctx, tc, charge.TenantID, "payment.authorized", pi.ID.String(), map[string]any{
			"payment_intent_id": pi.ID.String(),
			"amount":            pi.Amount.StringFixed(2),
			"currency":          pi.Currency,
			"order_id":          charge.OrderID,
			"customer_ref":      pi.CustomerRef,
		})
	})
}

// emit writes an outbox event carrying the context's correlation id.
func (s *Service) emit(ctx context.Context, tc ledgerdb.TransactionContext, tenantID, eventType, aggregateID string, payload map[string]any) error {
	payload["correlation_id"] = correlation.CorrelationID(ctx)
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := s.clk.Now()
	return tc.Outbox().Insert(ctx, &ledgerdb.OutboxEvent{
		ID:            uuid.New(),
		TenantID:      tenantID,
		EventType:     eventType,
		AggregateType: "payment_intent",
		AggregateID:   aggregateID,
		Payload:       body,
		Status:        ledgerdb.OutboxPending,
		AvailableAt:   now,
		CreatedAt:     now,
	})
}

func (s *Service) resolveAccount(ctx context.Context, tc ledgerdb.TransactionContext, tenantID, code string) (string, error) {
	cfg, err := tc.Accounts().Get(ctx, tenantID, code)
	if err != nil {
		return "", err
	}
	if cfg == nil {
		return code, nil
	}
	return cfg.Code, nil
}

func balancedEntry(tenantID string, intentID uuid.UUID, postedAt time.Time, lines ...ledgerdb.LedgerLine) *ledgerdb.LedgerEntry {
	entry := &ledgerdb.LedgerEntry{
		ID:              uuid.New(),
		TenantID:        tenantID,
		PaymentIntentID: intentID,
		PostedAt:        postedAt,
	}
	for i := range lines {
		lines[i].EntryID = entry.ID
	}
	entry.Lines = lines
	return entry
}

func line(tenantID string, side ledgerdb.Side, account string, amount decimal.Decimal, currency string) ledgerdb.LedgerLine {
	return ledgerdb.LedgerLine{
		ID:       uuid.New(),
		TenantID: tenantID,
		Side:     side,
		Account:  account,
		Amount:   amount,
		Currency: currency,
	}
}

func orderID(customerRef string) string {
	return strings.TrimPrefix(customerRef, "order:")
}
