package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

func openManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	require.NoError(t, m.Open(context.Background()))
	return m
}

func intent(amount string) *ledgerdb.PaymentIntent {
	return &ledgerdb.PaymentIntent{
		ID:       uuid.New(),
		TenantID: "tenant_demo",
		Amount:   decimal.RequireFromString(amount),
		Currency: "BRL",
		Status:   ledgerdb.IntentCreated,
	}
}

func TestPingAfterClose(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	require.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Close(ctx))
	assert.ErrorIs(t, m.Ping(ctx), ledgerdb.ErrDatabaseClosed)
}

func TestTransactionCommitsOnNil(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()
	pi := intent("10.00")

	err := m.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		return tc.PaymentIntents().Insert(ctx, pi)
	})
	require.NoError(t, err)

	got, err := m.PaymentIntents().Get(ctx, "tenant_demo", pi.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(pi.Amount))
}

func TestTransactionRollsBackOnError(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()
	pi := intent("10.00")
	boom := errors.New("boom")

	err := m.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		if err := tc.PaymentIntents().Insert(ctx, pi); err != nil {
			return err
		}
		// The write is visible inside the transaction.
		inside, err := tc.PaymentIntents().Get(ctx, "tenant_demo", pi.ID)
		if err != nil {
			return err
		}
		if inside == nil {
			return errors.New("write not visible inside transaction")
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Nothing committed.
	got, err := m.PaymentIntents().Get(ctx, "tenant_demo", pi.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTransactionPartialWritesRollBackTogether(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()
	pi := intent("10.00")
	boom := errors.New("boom")

	err := m.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		if err := tc.PaymentIntents().Insert(ctx, pi); err != nil {
			return err
		}
		if err := tc.Outbox().Insert(ctx, &ledgerdb.OutboxEvent{
			ID:          uuid.New(),
			TenantID:    "tenant_demo",
			EventType:   "payment.created",
			Payload:     []byte(`{}`),
			Status:      ledgerdb.OutboxPending,
			AvailableAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.PaymentIntents().Get(ctx, "tenant_demo", pi.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	events, err := m.Outbox().Claim(ctx, time.Now().Add(time.Hour), time.Minute, "test", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTransactionOnClosedManager(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()
	require.NoError(t, m.Close(ctx))

	err := m.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error { return nil })
	assert.ErrorIs(t, err, ledgerdb.ErrDatabaseClosed)
}

func TestGetReturnsCopy(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()
	pi := intent("10.00")
	require.NoError(t, m.PaymentIntents().Insert(ctx, pi))

	got, err := m.PaymentIntents().Get(ctx, "tenant_demo", pi.ID)
	require.NoError(t, err)
	got.Status = ledgerdb.IntentSettled

	again, err := m.PaymentIntents().Get(ctx, "tenant_demo", pi.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.IntentCreated, again.Status, "mutating a read result must not touch the store")
}
