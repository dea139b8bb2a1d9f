package reconciliation

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

	"github.com/brunopk/paycore/internal/gateway"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
)

const testTenant = "tenant_demo"

func newEngineFixture(t *testing.T) (*Engine, *memory.Manager, *clock.Fixed) {
	t.Helper()
	db := memory.NewManager()
	require.NoError(t, db.Open(context.Background()))
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewEngine(db, clk, zap.NewNop(), metrics.New()), db, clk
}

func insertIntent(t *testing.T, db *memory.Manager, amount string, status ledgerdb.PaymentIntentStatus, gatewayRef string) *ledgerdb.PaymentIntent {
	t.Helper()
	pi := &ledgerdb.PaymentIntent{
		ID:       uuid.New(),
		TenantID: testTenant,
		Amount:   decimal.RequireFromString(amount),
		Currency: "BRL",
		Status:   status,
	}
	if gatewayRef != "" {
		pi.GatewayRef = &gatewayRef
	}
	require.NoError(t, db.PaymentIntents().Insert(context.Background(), pi))
	return pi
}

func TestRunCleanStateFindsNothing(t *testing.T) {
	engine, db, clk := newEngineFixture(t)
	ctx := context.Background()

	insertIntent(t, db, "50.00", ledgerdb.IntentSettled, "ch_1")

	found, err := engine.Run(ctx, testTenant, []gateway.Transaction{
		{Ref: "ch_1", Amount: decimal.RequireFromString("50.00"), Currency: "BRL", Status: "succeeded"},
	})
	require.NoError(t, err)
	assert.Empty(t, found)

	// A clean run emits no outbox event.
	events, err := db.Outbox().Claim(ctx, clk.Now(), time.Minute, "test", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRunDetectsAllDiscrepancyTypes(t *testing.T) {
	engine, db, clk := newEngineFixture(t)
	ctx := context.Background()

	mismatchAmt := insertIntent(t, db, "50.00", ledgerdb.IntentSettled, "ch_amt")
	mismatchStatus := insertIntent(t, db, "30.00", ledgerdb.IntentSettled, "ch_status")
	missingRemote := insertIntent(t, db, "20.00", ledgerdb.IntentSettled, "ch_local_only")

	found, err := engine.Run(ctx, testTenant, []gateway.Transaction{
		{Ref: "ch_amt", Amount: decimal.RequireFromString("45.00"), Currency: "BRL", Status: "succeeded"},
		{Ref: "ch_status", Amount: decimal.RequireFromString("30.00"), Currency: "BRL", Status: "canceled"},
		{Ref: "ch_remote_only", Amount: decimal.RequireFromString("10.00"), Currency: "BRL", Status: "succeeded"},
	})
	require.NoError(t, err)
	require.Len(t, found, 4)

	byType := make(map[ledgerdb.DiscrepancyType]ledgerdb.Discrepancy)
	for _, d := range found {
		byType[d.Type] = d
	}

	amt := byType[ledgerdb.DiscAmountMismatch]
	require.NotNil(t, amt.PaymentIntentID)
	assert.Equal(t, mismatchAmt.ID, *amt.PaymentIntentID)
	assert.True(t, amt.ExpectedAmount.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, amt.ActualAmount.Equal(decimal.RequireFromString("45.00")))

	status := byType[ledgerdb.DiscStatusMismatch]
	require.NotNil(t, status.PaymentIntentID)
	assert.Equal(t, mismatchStatus.ID, *status.PaymentIntentID)
	assert.Equal(t, "SETTLED", status.ExpectedStatus)
	assert.Equal(t, "canceled", status.ActualStatus)

	local := byType[ledgerdb.DiscMissingLocal]
	assert.Equal(t, "ch_remote_only", local.GatewayRef)
	assert.Nil(t, local.PaymentIntentID)

	remote := byType[ledgerdb.DiscMissingRemote]
	assert.Equal(t, "ch_local_only", remote.GatewayRef)
	require.NotNil(t, remote.PaymentIntentID)
	assert.Equal(t, missingRemote.ID, *remote.PaymentIntentID)

	// One summary event for the whole run.
	events, err := db.Outbox().Claim(ctx, clk.Now(), time.Minute, "test", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "reconciliation.discrepancy_found", events[0].EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, float64(4), payload["discrepancy_count"])
	assert.Len(t, payload["types"], 4)
}

func TestRunAcceptsAgreeingStatuses(t *testing.T) {
	engine, db, _ := newEngineFixture(t)
	ctx := context.Background()

	insertIntent(t, db, "10.00", ledgerdb.IntentAuthorized, "ch_auth")
	insertIntent(t, db, "10.00", ledgerdb.IntentFailed, "ch_failed")

	found, err := engine.Run(ctx, testTenant, []gateway.Transaction{
		{Ref: "ch_auth", Amount: decimal.RequireFromString("10.00"), Currency: "BRL", Status: "requires_capture"},
		{Ref: "ch_failed", Amount: decimal.RequireFromString("10.00"), Currency: "BRL", Status: "requires_payment_method"},
	})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRunIgnoresUntrackedLocalStatus(t *testing.T) {
	engine, db, _ := newEngineFixture(t)
	ctx := context.Background()

	// CREATED has no expected gateway status, so no status comparison runs.
	insertIntent(t, db, "10.00", ledgerdb.IntentCreated, "ch_created")

	found, err := engine.Run(ctx, testTenant, []gateway.Transaction{
		{Ref: "ch_created", Amount: decimal.RequireFromString("10.00"), Currency: "BRL", Status: "whatever"},
	})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestListAndResolve(t *testing.T) {
	engine, db, _ := newEngineFixture(t)
	ctx := context.Background()

	insertIntent(t, db, "50.00", ledgerdb.IntentSettled, "ch_1")
	found, err := engine.Run(ctx, testTenant, []gateway.Transaction{
		{Ref: "ch_1", Amount: decimal.RequireFromString("40.00"), Currency: "BRL", Status: "succeeded"},
	})
	require.NoError(t, err)
	require.Len(t, found, 1)

	unresolved := false
	list, err := engine.List(ctx, testTenant, &unresolved, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, engine.Resolve(ctx, testTenant, found[0].ID))

	list, err = engine.List(ctx, testTenant, &unresolved, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	resolved := true
	list, err = engine.List(ctx, testTenant, &resolved, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Resolving twice is a no-op.
	require.NoError(t, engine.Resolve(ctx, testTenant, found[0].ID))

	err = engine.Resolve(ctx, testTenant, uuid.New())
	assert.Equal(t, problem.KindNotFound, problem.KindOf(err))
}
