package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// RefundRepository implements ledgerdb.RefundRepository for PostgreSQL.
type RefundRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRefundRepository(db *sql.DB) *RefundRepository { return &RefundRepository{db: db} }

func NewRefundRepositoryWithTx(tx *sql.Tx) *RefundRepository { return &RefundRepository{tx: tx} }

func (r *RefundRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RefundRepository) Insert(ctx context.Context, ref *ledgerdb.Refund) error {
	query := `INSERT INTO refunds (id, tenant_id, payment_intent_id, amount, reason, status, gateway_ref, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		ref.ID, ref.TenantID, ref.PaymentIntentID, ref.Amount, ref.Reason,
		ref.Status, ref.GatewayRef, ref.CreatedAt)
	if err != nil {
		return ledgerdb.NewQueryError("insert_refund", "failed to insert refund", err)
	}
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, ref *ledgerdb.Refund) error {
	query := `UPDATE refunds SET status = $1, gateway_ref = $2 WHERE tenant_id = $3 AND id = $4`

	_, err := r.getExecutor().ExecContext(ctx, query, ref.Status, ref.GatewayRef, ref.TenantID, ref.ID)
	if err != nil {
		return ledgerdb.NewQueryError("update_refund", "failed to update refund", err)
	}
	return nil
}

func (r *RefundRepository) List(ctx context.Context, tenantID string, paymentIntentID uuid.UUID) ([]ledgerdb.Refund, error) {
	query := `SELECT id, tenant_id, payment_intent_id, amount, reason, status, gateway_ref, created_at
			  FROM refunds
			  WHERE tenant_id = $1 AND payment_intent_id = $2
			  ORDER BY created_at ASC`

	rows, err := r.getExecutor().QueryContext(ctx, query, tenantID, paymentIntentID)
	if err != nil {
		return nil, ledgerdb.NewQueryError("list_refunds", "failed to query refunds", err)
	}
	defer rows.Close()

	var refunds []ledgerdb.Refund
	for rows.Next() {
		var ref ledgerdb.Refund
		var reason, gatewayRef sql.NullString
		if err := rows.Scan(&ref.ID, &ref.TenantID, &ref.PaymentIntentID, &ref.Amount,
			&reason, &ref.Status, &gatewayRef, &ref.CreatedAt); err != nil {
			return nil, ledgerdb.NewQueryError("list_refunds", "failed to scan row", err)
		}
		ref.Reason = reason.String
		if gatewayRef.Valid {
			ref.GatewayRef = &gatewayRef.String
		}
		refunds = append(refunds, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("list_refunds", "error iterating rows", err)
	}
	return refunds, nil
}

func (r *RefundRepository) SumActive(ctx context.Context, tenantID string, paymentIntentID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0)
			  FROM refunds
			  WHERE tenant_id = $1 AND payment_intent_id = $2 AND status <> 'FAILED'`

	var total decimal.Decimal
	if err := r.getExecutor().QueryRowContext(ctx, query, tenantID, paymentIntentID).Scan(&total); err != nil {
		return decimal.Zero, ledgerdb.NewQueryError("sum_active_refunds", "failed to sum refunds", err)
	}
	return total, nil
}
