package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// LedgerRepository implements ledgerdb.LedgerRepository for PostgreSQL.
type LedgerRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository { return &LedgerRepository{db: db} }

func NewLedgerRepositoryWithTx(tx *sql.Tx) *LedgerRepository { return &LedgerRepository{tx: tx} }

func (r *LedgerRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *LedgerRepository) InsertEntry(ctx context.Context, entry *ledgerdb.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, tenant_id, payment_intent_id, posted_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := r.getExecutor().ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.PaymentIntentID, entry.PostedAt); err != nil {
		return ledgerdb.NewQueryError("insert_ledger_entry", "failed to insert ledger entry", err)
	}

	lineQuery := `INSERT INTO ledger_lines (id, tenant_id, entry_id, side, account, amount, currency)
				  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, line := range entry.Lines {
		if _, err := r.getExecutor().ExecContext(ctx, lineQuery,
			line.ID, line.TenantID, entry.ID, line.Side, line.Account, line.Amount, line.Currency); err != nil {
			return ledgerdb.NewQueryError("insert_ledger_line", "failed to insert ledger line", err)
		}
	}
	return nil
}

func (r *LedgerRepository) ListEntries(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]ledgerdb.LedgerEntry, error) {
	query := `SELECT id, tenant_id, payment_intent_id, posted_at FROM ledger_entries WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if from != nil {
		args = append(args, *from)
		query += ` AND posted_at >= $` + itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND posted_at <= $` + itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY posted_at DESC LIMIT $` + itoa(len(args))

	rows, err := r.getExecutor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgerdb.NewQueryError("list_ledger_entries", "failed to query ledger entries", err)
	}
	defer rows.Close()

	var entries []ledgerdb.LedgerEntry
	for rows.Next() {
		var e ledgerdb.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PaymentIntentID, &e.PostedAt); err != nil {
			return nil, ledgerdb.NewQueryError("list_ledger_entries", "failed to scan row", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("list_ledger_entries", "error iterating rows", err)
	}

	for i := range entries {
		lines, err := r.linesFor(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

func (r *LedgerRepository) linesFor(ctx context.Context, entryID interface{}) ([]ledgerdb.LedgerLine, error) {
	query := `SELECT id, tenant_id, entry_id, side, account, amount, currency
			  FROM ledger_lines WHERE entry_id = $1 ORDER BY side`

	rows, err := r.getExecutor().QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, ledgerdb.NewQueryError("list_ledger_lines", "failed to query ledger lines", err)
	}
	defer rows.Close()

	var lines []ledgerdb.LedgerLine
	for rows.Next() {
		var l ledgerdb.LedgerLine
		if err := rows.Scan(&l.ID, &l.TenantID, &l.EntryID, &l.Side, &l.Account, &l.Amount, &l.Currency); err != nil {
			return nil, ledgerdb.NewQueryError("list_ledger_lines", "failed to scan row", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("list_ledger_lines", "error iterating rows", err)
	}
	return lines, nil
}

func (r *LedgerRepository) RevenueByPeriod(ctx context.Context, tenantID, granularity string, from, to *time.Time) ([]ledgerdb.RevenueRow, error) {
	switch granularity {
	case "day", "week", "month":
	default:
		granularity = "month"
	}

	query := `SELECT date_trunc('` + granularity + `', e.posted_at) AS period, l.currency, COALESCE(SUM(l.amount), 0) AS total
			  FROM ledger_lines l
			  JOIN ledger_entries e ON l.entry_id = e.id
			  WHERE e.tenant_id = $1 AND l.side = 'CREDIT' AND l.account = 'REVENUE'`
	args := []interface{}{tenantID}
	if from != nil {
		args = append(args, *from)
		query += ` AND e.posted_at >= $` + itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND e.posted_at <= $` + itoa(len(args))
	}
	query += ` GROUP BY period, l.currency ORDER BY period`

	rows, err := r.getExecutor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgerdb.NewQueryError("revenue_by_period", "failed to query revenue report", err)
	}
	defer rows.Close()

	var results []ledgerdb.RevenueRow
	for rows.Next() {
		var row ledgerdb.RevenueRow
		if err := rows.Scan(&row.Period, &row.Currency, &row.Total); err != nil {
			return nil, ledgerdb.NewQueryError("revenue_by_period", "failed to scan row", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("revenue_by_period", "error iterating rows", err)
	}
	return results, nil
}

func (r *LedgerRepository) AccountBalances(ctx context.Context, tenantID string, from, to *time.Time) ([]ledgerdb.BalanceRow, error) {
	query := `SELECT l.account, l.currency,
				COALESCE(SUM(CASE WHEN l.side = 'DEBIT' THEN l.amount ELSE 0 END), 0) AS debits_total,
				COALESCE(SUM(CASE WHEN l.side = 'CREDIT' THEN l.amount ELSE 0 END), 0) AS credits_total
			  FROM ledger_lines l
			  JOIN ledger_entries e ON l.entry_id = e.id
			  WHERE e.tenant_id = $1`
	args := []interface{}{tenantID}
	if from != nil {
		args = append(args, *from)
		query += ` AND e.posted_at >= $` + itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND e.posted_at <= $` + itoa(len(args))
	}
	query += ` GROUP BY l.account, l.currency ORDER BY l.account, l.currency`

	rows, err := r.getExecutor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgerdb.NewQueryError("account_balances", "failed to query balance report", err)
	}
	defer rows.Close()

	var results []ledgerdb.BalanceRow
	for rows.Next() {
		var row ledgerdb.BalanceRow
		if err := rows.Scan(&row.Account, &row.Currency, &row.DebitsTotal, &row.CreditsTotal); err != nil {
			return nil, ledgerdb.NewQueryError("account_balances", "failed to scan row", err)
		}
		row.Balance = row.CreditsTotal.Sub(row.DebitsTotal)
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("account_balances", "error iterating rows", err)
	}
	return results, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
