package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
)

const testTenant = "tenant_demo"

func newReportFixture(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	db := memory.NewManager()
	require.NoError(t, db.Open(context.Background()))
	return NewService(db), db
}

func postSale(t *testing.T, db *memory.Manager, amount string, postedAt time.Time) {
	t.Helper()
	entryID := uuid.New()
	amt := decimal.RequireFromString(amount)
	require.NoError(t, db.Ledger().InsertEntry(context.Background(), &ledgerdb.LedgerEntry{
		ID:              entryID,
		TenantID:        testTenant,
		PaymentIntentID: uuid.New(),
		PostedAt:        postedAt,
		Lines: []ledgerdb.LedgerLine{
			{ID: uuid.New(), TenantID: testTenant, EntryID: entryID, Side: ledgerdb.SideDebit, Account: ledgerdb.AccountCash, Amount: amt, Currency: "BRL"},
			{ID: uuid.New(), TenantID: testTenant, EntryID: entryID, Side: ledgerdb.SideCredit, Account: ledgerdb.AccountRevenue, Amount: amt, Currency: "BRL"},
		},
	}))
}

func TestLedgerEntriesClampsLimit(t *testing.T) {
	svc, db := newReportFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < maxEntries+10; i++ {
		postSale(t, db, "1.00", base.Add(time.Duration(i)*time.Minute))
	}

	entries, err := svc.LedgerEntries(ctx, testTenant, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, entries, maxEntries)

	entries, err = svc.LedgerEntries(ctx, testTenant, nil, nil, maxEntries+100)
	require.NoError(t, err)
	assert.Len(t, entries, maxEntries)

	entries, err = svc.LedgerEntries(ctx, testTenant, nil, nil, 5)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	// Newest first.
	assert.True(t, entries[0].PostedAt.After(entries[4].PostedAt))
}

func TestLedgerEntriesWindow(t *testing.T) {
	svc, db := newReportFixture(t)
	ctx := context.Background()

	postSale(t, db, "1.00", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	postSale(t, db, "2.00", time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC))
	postSale(t, db, "3.00", time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC))

	from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	entries, err := svc.LedgerEntries(ctx, testTenant, &from, &to, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC), entries[0].PostedAt)
}

func TestRevenueByDay(t *testing.T) {
	svc, db := newReportFixture(t)
	ctx := context.Background()

	postSale(t, db, "10.00", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	postSale(t, db, "5.00", time.Date(2025, 3, 1, 17, 0, 0, 0, time.UTC))
	postSale(t, db, "7.00", time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))

	rows, err := svc.Revenue(ctx, testTenant, "day", nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), rows[0].Period)
	assert.True(t, rows[0].Total.Equal(decimal.RequireFromString("15.00")))
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), rows[1].Period)
	assert.True(t, rows[1].Total.Equal(decimal.RequireFromString("7.00")))
}

func TestRevenueByMonthIsTheDefaultGranularity(t *testing.T) {
	svc, db := newReportFixture(t)
	ctx := context.Background()

	postSale(t, db, "10.00", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	postSale(t, db, "20.00", time.Date(2025, 3, 28, 9, 0, 0, 0, time.UTC))
	postSale(t, db, "5.00", time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC))

	rows, err := svc.Revenue(ctx, testTenant, "month", nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), rows[0].Period)
	assert.True(t, rows[0].Total.Equal(decimal.RequireFromString("30.00")))
}

func TestAccountBalances(t *testing.T) {
	svc, db := newReportFixture(t)
	ctx := context.Background()

	postSale(t, db, "10.00", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	postSale(t, db, "5.00", time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))

	rows, err := svc.AccountBalances(ctx, testTenant, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Sorted by account code: CASH then REVENUE.
	cash := rows[0]
	assert.Equal(t, ledgerdb.AccountCash, cash.Account)
	assert.True(t, cash.DebitsTotal.Equal(decimal.RequireFromString("15.00")))
	assert.True(t, cash.CreditsTotal.IsZero())
	assert.True(t, cash.Balance.Equal(decimal.RequireFromString("-15.00")))

	revenue := rows[1]
	assert.Equal(t, ledgerdb.AccountRevenue, revenue.Account)
	assert.True(t, revenue.CreditsTotal.Equal(decimal.RequireFromString("15.00")))
	assert.True(t, revenue.Balance.Equal(decimal.RequireFromString("15.00")))
}
