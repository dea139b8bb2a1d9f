package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/core/payment"
	"github.com/brunopk/paycore/internal/core/tenant"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
)

func newConsumerFixture(t *testing.T) (*Consumer, *payment.Service, *memory.Manager) {
	t.Helper()
	db := memory.NewManager()
	require.NoError(t, db.Open(context.Background()))
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	payments := payment.NewService(db, clk, log, metrics.New())
	tenants := tenant.NewSynchronizer(db, clk, log)
	return NewConsumer(nil, payments, tenants, log), payments, db
}

func body(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestHandleChargeSnakeCase(t *testing.T) {
	c, _, db := newConsumerFixture(t)
	ctx := context.Background()

	err := c.Handle(ctx, "payment.charge_requested", amqp.Table{"X-Tenant-Id": "tenant_demo"}, body(t, map[string]any{
		"order_id":     "ord-1",
		"total_amount": "150.00",
		"currency":     "BRL",
	}))
	require.NoError(t, err)

	pi, err := db.PaymentIntents().GetByCustomerRef(ctx, "tenant_demo", "order:ord-1")
	require.NoError(t, err)
	require.NotNil(t, pi)
	assert.Equal(t, ledgerdb.IntentAuthorized, pi.Status)
	assert.True(t, pi.Amount.Equal(decimal.RequireFromString("150.00")))
}

func TestHandleChargeCamelCaseAndNumericAmount(t *testing.T) {
	c, _, db := newConsumerFixture(t)
	ctx := context.Background()

	// Tenant comes from the payload when the header is absent.
	err := c.Handle(ctx, "order.confirmed", nil, body(t, map[string]any{
		"orderId":     "ord-2",
		"tenantId":    "tenant_demo",
		"totalAmount": 99.9,
	}))
	require.NoError(t, err)

	pi, err := db.PaymentIntents().GetByCustomerRef(ctx, "tenant_demo", "order:ord-2")
	require.NoError(t, err)
	require.NotNil(t, pi)
	assert.True(t, pi.Amount.Equal(decimal.RequireFromString("99.9")))
	assert.Equal(t, "BRL", pi.Currency)
}

func TestHandleChargeDuplicateIsNoOp(t *testing.T) {
	c, _, db := newConsumerFixture(t)
	ctx := context.Background()

	msg := body(t, map[string]any{"order_id": "ord-3", "amount": "10.00", "tenant_id": "tenant_demo"})
	require.NoError(t, c.Handle(ctx, "payment.charge_requested", nil, msg))
	require.NoError(t, c.Handle(ctx, "payment.charge_requested", nil, msg))

	// One intent, one authorized event: the duplicate was ignored.
	pi, err := db.PaymentIntents().GetByCustomerRef(ctx, "tenant_demo", "order:ord-3")
	require.NoError(t, err)
	require.NotNil(t, pi)

	events, err := db.Outbox().Claim(ctx, time.Now().Add(time.Hour), time.Minute, "test", 100)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHandleChargeMissingFields(t *testing.T) {
	c, _, _ := newConsumerFixture(t)
	ctx := context.Background()

	err := c.Handle(ctx, "payment.charge_requested", nil, body(t, map[string]any{
		"tenant_id": "tenant_demo",
		"amount":    "10.00",
	}))
	assert.Error(t, err, "charge without order id must be rejected")

	err = c.Handle(ctx, "payment.charge_requested", nil, body(t, map[string]any{
		"tenant_id": "tenant_demo",
		"order_id":  "ord-4",
	}))
	assert.Error(t, err, "charge without amount must be rejected")
}

func TestHandleAuthorizedSettlesIntent(t *testing.T) {
	c, payments, db := newConsumerFixture(t)
	ctx := context.Background()

	pi, err := payments.Create(ctx, "tenant_demo", decimal.NewFromInt(25), "BRL", "cust-1")
	require.NoError(t, err)
	_, err = payments.Confirm(ctx, "tenant_demo", pi.ID)
	require.NoError(t, err)

	err = c.Handle(ctx, "payment.authorized", amqp.Table{"X-Tenant-Id": "tenant_demo"}, body(t, map[string]any{
		"payment_intent_id": pi.ID.String(),
	}))
	require.NoError(t, err)

	got, err := db.PaymentIntents().Get(ctx, "tenant_demo", pi.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentSettled, got.Status)
}

func TestHandleTenantLifecycle(t *testing.T) {
	c, _, db := newConsumerFixture(t)
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, "tenant.created", nil, body(t, map[string]any{
		"id":     "tenant_new",
		"name":   "New Co",
		"plan":   "starter",
		"region": "region-b",
	})))

	tn, err := db.Tenants().Get(ctx, "tenant_new")
	require.NoError(t, err)
	require.NotNil(t, tn)
	assert.Equal(t, "starter", tn.Plan)

	// Default chart of accounts was seeded with the tenant.
	accounts, err := db.Accounts().List(ctx, "tenant_new")
	require.NoError(t, err)
	assert.Len(t, accounts, 3)

	require.NoError(t, c.Handle(ctx, "tenant.updated", nil, body(t, map[string]any{
		"id":   "tenant_new",
		"plan": "pro",
	})))
	tn, err = db.Tenants().Get(ctx, "tenant_new")
	require.NoError(t, err)
	assert.Equal(t, "pro", tn.Plan)
	assert.Equal(t, "New Co", tn.Name)

	require.NoError(t, c.Handle(ctx, "tenant.deleted", nil, body(t, map[string]any{"id": "tenant_new"})))
	tn, err = db.Tenants().Get(ctx, "tenant_new")
	require.NoError(t, err)
	assert.Equal(t, "[DELETED] New Co", tn.Name)

	// Deleting twice does not stack prefixes.
	require.NoError(t, c.Handle(ctx, "tenant.deleted", nil, body(t, map[string]any{"id": "tenant_new"})))
	tn, err = db.Tenants().Get(ctx, "tenant_new")
	require.NoError(t, err)
	assert.Equal(t, "[DELETED] New Co", tn.Name)
}

func TestUnknownRoutingKeyIsAcked(t *testing.T) {
	c, _, _ := newConsumerFixture(t)

	err := c.Handle(context.Background(), "something.else", nil, body(t, map[string]any{"x": 1}))
	assert.NoError(t, err)
}

func TestMalformedBodyIsRejected(t *testing.T) {
	c, _, _ := newConsumerFixture(t)

	err := c.Handle(context.Background(), "payment.charge_requested", nil, []byte("{nope"))
	assert.Error(t, err)
}
