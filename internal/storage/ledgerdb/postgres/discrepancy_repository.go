package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// DiscrepancyRepository implements ledgerdb.DiscrepancyRepository for PostgreSQL.
type DiscrepancyRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewDiscrepancyRepository(db *sql.DB) *DiscrepancyRepository {
	return &DiscrepancyRepository{db: db}
}

func NewDiscrepancyRepositoryWithTx(tx *sql.Tx) *DiscrepancyRepository {
	return &DiscrepancyRepository{tx: tx}
}

func (r *DiscrepancyRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const discrepancyColumns = `id, tenant_id, payment_intent_id, discrepancy_type, gateway_ref, expected_amount, actual_amount, expected_status, actual_status, resolved, details, created_at`

func (r *DiscrepancyRepository) Insert(ctx context.Context, d *ledgerdb.Discrepancy) error {
	query := `INSERT INTO reconciliation_discrepancies
			  (id, tenant_id, payment_intent_id, discrepancy_type, gateway_ref, expected_amount, actual_amount, expected_status, actual_status, resolved, details, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		d.ID, d.TenantID, d.PaymentIntentID, d.Type, d.GatewayRef,
		d.ExpectedAmount, d.ActualAmount, d.ExpectedStatus, d.ActualStatus,
		d.Resolved, d.Details, d.CreatedAt)
	if err != nil {
		return ledgerdb.NewQueryError("insert_discrepancy", "failed to insert discrepancy", err)
	}
	return nil
}

func (r *DiscrepancyRepository) List(ctx context.Context, tenantID string, resolved *bool, limit int) ([]ledgerdb.Discrepancy, error) {
	query := `SELECT ` + discrepancyColumns + ` FROM reconciliation_discrepancies WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if resolved != nil {
		args = append(args, *resolved)
		query += ` AND resolved = $` + itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args))

	rows, err := r.getExecutor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgerdb.NewQueryError("list_discrepancies", "failed to query discrepancies", err)
	}
	defer rows.Close()

	var results []ledgerdb.Discrepancy
	for rows.Next() {
		d, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, ledgerdb.NewQueryError("list_discrepancies", "failed to scan row", err)
		}
		results = append(results, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("list_discrepancies", "error iterating rows", err)
	}
	return results, nil
}

func (r *DiscrepancyRepository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.Discrepancy, error) {
	query := `SELECT ` + discrepancyColumns + ` FROM reconciliation_discrepancies WHERE tenant_id = $1 AND id = $2`

	row := r.getExecutor().QueryRowContext(ctx, query, tenantID, id)
	d, err := scanDiscrepancy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("get_discrepancy", "failed to query discrepancy", err)
	}
	return d, nil
}

func (r *DiscrepancyRepository) Resolve(ctx context.Context, tenantID string, id uuid.UUID) error {
	query := `UPDATE reconciliation_discrepancies SET resolved = TRUE WHERE tenant_id = $1 AND id = $2`
	if _, err := r.getExecutor().ExecContext(ctx, query, tenantID, id); err != nil {
		return ledgerdb.NewQueryError("resolve_discrepancy", "failed to resolve discrepancy", err)
	}
	return nil
}

func scanDiscrepancy(s rowScanner) (*ledgerdb.Discrepancy, error) {
	var d ledgerdb.Discrepancy
	var intentID uuid.NullUUID
	var gatewayRef, expectedStatus, actualStatus sql.NullString
	var expectedAmount, actualAmount decimal.NullDecimal
	if err := s.Scan(&d.ID, &d.TenantID, &intentID, &d.Type, &gatewayRef,
		&expectedAmount, &actualAmount, &expectedStatus, &actualStatus,
		&d.Resolved, &d.Details, &d.CreatedAt); err != nil {
		return nil, err
	}
	if intentID.Valid {
		d.PaymentIntentID = &intentID.UUID
	}
	d.GatewayRef = gatewayRef.String
	d.ExpectedStatus = expectedStatus.String
	d.ActualStatus = actualStatus.String
	if expectedAmount.Valid {
		d.ExpectedAmount = &expectedAmount.Decimal
	}
	if actualAmount.Valid {
		d.ActualAmount = &actualAmount.Decimal
	}
	return &d, nil
}
