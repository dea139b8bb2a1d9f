package payment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
)

const testTenant = "tenant_demo"

func newTestService(t *testing.T) (*Service, *memory.Manager, *clock.Fixed) {
	t.Helper()
	db := memory.NewManager()
	require.NoError(t, db.Open(context.Background()))
	clk := clock.NewFixed(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := NewService(db, clk, zap.NewNop(), metrics.New())
	return svc, db, clk
}

// drainOutbox claims every due pending event so tests can inspect what a
// transition emitted.
func drainOutbox(t *testing.T, db *memory.Manager, now time.Time) []ledgerdb.OutboxEvent {
	t.Helper()
	events, err := db.Outbox().Claim(context.Background(), now, time.Minute, "test-worker", 100)
	require.NoError(t, err)
	return events
}

func kindOf(t *testing.T, err error) problem.Kind {
	t.Helper()
	require.Error(t, err)
	return problem.KindOf(err)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, testTenant, decimal.Zero, "BRL", "cust-1")
	assert.Equal(t, problem.KindInvalidArgument, kindOf(t, err))

	_, err = svc.Create(ctx, testTenant, decimal.NewFromInt(-5), "BRL", "cust-1")
	assert.Equal(t, problem.KindInvalidArgument, kindOf(t, err))

	_, err = svc.Create(ctx, testTenant, decimal.NewFromInt(10), "JPY", "cust-1")
	assert.Equal(t, problem.KindInvalidArgument, kindOf(t, err))
}

func TestCreateEmitsOutboxEvent(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := correlation.WithCorrelationID(context.Background(), "corr-123")

	pi, err := svc.Create(ctx, testTenant, decimal.RequireFromString("49.90"), "BRL", "cust-9")
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentCreated, pi.Status)

	events := drainOutbox(t, db, clk.Now())
	require.Len(t, events, 1)
	assert.Equal(t, "payment.intent.created", events[0].EventType)
	assert.Equal(t, testTenant, events[0].TenantID)
	assert.Equal(t, pi.ID.String(), events[0].AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "49.90", payload["amount"])
	assert.Equal(t, "BRL", payload["currency"])
	assert.Equal(t, "corr-123", payload["correlation_id"])
}

func TestConfirmTransitionsAndIdempotency(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	pi, err := svc.Create(ctx, testTenant, decimal.NewFromInt(100), "USD", "cust-1")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentAuthorized, confirmed.Status)

	// Confirming an AUTHORIZED intent is a conflict; the client should wait
	// for settlement instead.
	_, err = svc.Confirm(ctx, testTenant, pi.ID)
	assert.Equal(t, problem.KindConflict, kindOf(t, err))

	require.NoError(t, svc.PostLedgerForAuthorized(ctx, testTenant, pi.ID))

	// Once SETTLED, confirm replays the current state without error.
	settled, err := svc.Confirm(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentSettled, settled.Status)

	events := drainOutbox(t, db, clk.Now())
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []string{"payment.intent.created", "payment.authorized", "payment.settled"}, types)
}

func TestConfirmUnknownIntent(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Confirm(context.Background(), testTenant, uuid.New())
	assert.Equal(t, problem.KindNotFound, kindOf(t, err))
}

func TestPostLedgerWritesBalancedEntry(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	pi, err := svc.Create(ctx, testTenant, decimal.RequireFromString("75.50"), "BRL", "order:ord-42")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	require.NoError(t, svc.PostLedgerForAuthorized(ctx, testTenant, pi.ID))

	entries, err := db.Ledger().ListEntries(ctx, testTenant, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Lines, 2)

	var debits, credits decimal.Decimal
	for _, l := range entries[0].Lines {
		switch l.Side {
		case ledgerdb.SideDebit:
			debits = debits.Add(l.Amount)
			assert.Equal(t, ledgerdb.AccountCash, l.Account)
		case ledgerdb.SideCredit:
			credits = credits.Add(l.Amount)
			assert.Equal(t, ledgerdb.AccountRevenue, l.Account)
		}
	}
	assert.True(t, debits.Equal(credits), "entry must balance: debits %s credits %s", debits, credits)
	assert.True(t, debits.Equal(decimal.RequireFromString("75.50")))

	// payment.settled carries the order id without the ref prefix.
	events := drainOutbox(t, db, clk.Now())
	var settledPayload map[string]any
	for _, e := range events {
		if e.EventType == "payment.settled" {
			require.NoError(t, json.Unmarshal(e.Payload, &settledPayload))
		}
	}
	require.NotNil(t, settledPayload)
	assert.Equal(t, "ord-42", settledPayload["order_id"])
}

func TestPostLedgerSkipsNonAuthorized(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	pi, err := svc.Create(ctx, testTenant, decimal.NewFromInt(10), "BRL", "cust-1")
	require.NoError(t, err)

	// CREATED intents are left untouched.
	require.NoError(t, svc.PostLedgerForAuthorized(ctx, testTenant, pi.ID))

	got, err := svc.Get(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentCreated, got.Status)

	entries, err := db.Ledger().ListEntries(ctx, testTenant, nil, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func settleIntent(t *testing.T, svc *Service, amount string) *ledgerdb.PaymentIntent {
	t.Helper()
	ctx := context.Background()
	pi, err := svc.Create(ctx, testTenant, decimal.RequireFromString(amount), "BRL", "cust-refund")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	require.NoError(t, svc.PostLedgerForAuthorized(ctx, testTenant, pi.ID))
	return pi
}

func TestRefundPartialThenFull(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	pi := settleIntent(t, svc, "50.00")

	ref1, err := svc.Refund(ctx, testTenant, pi.ID, decimal.RequireFromString("20.00"), "customer request")
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.RefundCompleted, ref1.Status)

	got, err := svc.Get(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentPartiallyRefunded, got.Status)

	ref2, err := svc.Refund(ctx, testTenant, pi.ID, decimal.RequireFromString("30.00"), "remainder")
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.RefundCompleted, ref2.Status)

	got, err = svc.Get(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentRefunded, got.Status)

	refunds, err := svc.ListRefunds(ctx, testTenant, pi.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 2)
}

func TestRefundSaturation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	pi := settleIntent(t, svc, "50.00")

	_, err := svc.Refund(ctx, testTenant, pi.ID, decimal.RequireFromString("20.00"), "")
	require.NoError(t, err)
	_, err = svc.Refund(ctx, testTenant, pi.ID, decimal.RequireFromString("30.00"), "")
	require.NoError(t, err)

	// The intent is fully refunded: even one extra cent must be rejected.
	_, err = svc.Refund(ctx, testTenant, pi.ID, decimal.RequireFromString("0.01"), "")
	assert.Equal(t, problem.KindConflict, kindOf(t, err))
}

func TestRefundOverIntentAmount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	pi := settleIntent(t, svc, "50.00")

	_, err := svc.Refund(ctx, testTenant, pi.ID, decimal.RequireFromString("50.01"), "")
	assert.Equal(t, problem.KindUnprocessable, kindOf(t, err))
}

func TestRefundValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Refunding a CREATED intent is a state conflict.
	pi, err := svc.Create(ctx, testTenant, decimal.NewFromInt(10), "BRL", "cust-1")
	require.NoError(t, err)
	_, err = svc.Refund(ctx, testTenant, pi.ID, decimal.NewFromInt(5), "")
	assert.Equal(t, problem.KindConflict, kindOf(t, err))

	settled := settleIntent(t, svc, "10.00")
	_, err = svc.Refund(ctx, testTenant, settled.ID, decimal.Zero, "")
	assert.Equal(t, problem.KindInvalidArgument, kindOf(t, err))
}

func TestRefundPostsReversalEntry(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	pi := settleIntent(t, svc, "40.00")

	_, err := svc.Refund(ctx, testTenant, pi.ID, decimal.RequireFromString("15.00"), "damaged goods")
	require.NoError(t, err)

	entries, err := db.Ledger().ListEntries(ctx, testTenant, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var found bool
	for _, entry := range entries {
		for _, l := range entry.Lines {
			if l.Side == ledgerdb.SideDebit && l.Account == ledgerdb.AccountRefundExpense {
				found = true
				assert.True(t, l.Amount.Equal(decimal.RequireFromString("15.00")))
			}
		}
	}
	assert.True(t, found, "expected a DEBIT REFUND_EXPENSE line")
}

func TestCreateFromChargeDeduplicates(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	charge := Charge{
		OrderID:  "ord-77",
		TenantID: testTenant,
		Amount:   decimal.RequireFromString("120.00"),
		Currency: "BRL",
	}
	require.NoError(t, svc.CreateFromCharge(ctx, charge))
	require.NoError(t, svc.CreateFromCharge(ctx, charge))

	pi, err := db.PaymentIntents().GetByCustomerRef(ctx, testTenant, "order:ord-77")
	require.NoError(t, err)
	require.NotNil(t, pi)
	assert.Equal(t, ledgerdb.IntentAuthorized, pi.Status)

	// The duplicate was a no-op: one authorized event only.
	events := drainOutbox(t, db, clk.Now())
	var authorized int
	for _, e := range events {
		if e.EventType == "payment.authorized" {
			authorized++
		}
	}
	assert.Equal(t, 1, authorized)
}

func TestCreateFromChargeDefaultsCurrency(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateFromCharge(ctx, Charge{
		OrderID:  "ord-88",
		TenantID: testTenant,
		Amount:   decimal.NewFromInt(10),
	}))

	pi, err := db.PaymentIntents().GetByCustomerRef(ctx, testTenant, "order:ord-88")
	require.NoError(t, err)
	require.NotNil(t, pi)
	assert.Equal(t, "BRL", pi.Currency)
}

func TestTenantIsolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	pi, err := svc.Create(ctx, testTenant, decimal.NewFromInt(10), "BRL", "cust-1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "tenant_other", pi.ID)
	assert.Equal(t, problem.KindNotFound, kindOf(t, err))

	_, err = svc.Confirm(ctx, "tenant_other", pi.ID)
	assert.Equal(t, problem.KindNotFound, kindOf(t, err))
}
