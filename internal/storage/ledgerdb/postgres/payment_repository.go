package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// PaymentIntentRepository implements ledgerdb.PaymentIntentRepository for PostgreSQL.
type PaymentIntentRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPaymentIntentRepository(db *sql.DB) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db}
}

func NewPaymentIntentRepositoryWithTx(tx *sql.Tx) *PaymentIntentRepository {
	return &PaymentIntentRepository{tx: tx}
}

func (r *PaymentIntentRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const paymentIntentColumns = `id, tenant_id, amount, currency, status, customer_ref, gateway_ref, created_at, updated_at`

func (r *PaymentIntentRepository) Insert(ctx context.Context, pi *ledgerdb.PaymentIntent) error {
	query := `INSERT INTO payment_intents (id, tenant_id, amount, currency, status, customer_ref, gateway_ref, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		pi.ID, pi.TenantID, pi.Amount, pi.Currency, pi.Status, pi.CustomerRef,
		pi.GatewayRef, pi.CreatedAt, pi.UpdatedAt)
	if err != nil {
		return ledgerdb.NewQueryError("insert_payment_intent", "failed to insert payment intent", err)
	}
	return nil
}

func (r *PaymentIntentRepository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE tenant_id = $1 AND id = $2`
	return r.scanOne(ctx, "get_payment_intent", query, tenantID, id)
}

func (r *PaymentIntentRepository) GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return r.scanOne(ctx, "get_payment_intent_for_update", query, tenantID, id)
}

func (r *PaymentIntentRepository) GetByCustomerRef(ctx context.Context, tenantID, customerRef string) (*ledgerdb.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE tenant_id = $1 AND customer_ref = $2`
	return r.scanOne(ctx, "get_payment_intent_by_customer_ref", query, tenantID, customerRef)
}

func (r *PaymentIntentRepository) GetByGatewayRef(ctx context.Context, tenantID, gatewayRef string) (*ledgerdb.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE tenant_id = $1 AND gateway_ref = $2`
	return r.scanOne(ctx, "get_payment_intent_by_gateway_ref", query, tenantID, gatewayRef)
}

func (r *PaymentIntentRepository) ListWithGatewayRef(ctx context.Context, tenantID string) ([]ledgerdb.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents
			  WHERE tenant_id = $1 AND gateway_ref IS NOT NULL`

	rows, err := r.getExecutor().QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, ledgerdb.NewQueryError("list_payment_intents_with_gateway_ref", "failed to query payment intents", err)
	}
	defer rows.Close()

	var results []ledgerdb.PaymentIntent
	for rows.Next() {
		pi, err := scanPaymentIntent(rows)
		if err != nil {
			return nil, ledgerdb.NewQueryError("list_payment_intents_with_gateway_ref", "failed to scan row", err)
		}
		results = append(results, *pi)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("list_payment_intents_with_gateway_ref", "error iterating rows", err)
	}
	return results, nil
}

func (r *PaymentIntentRepository) Update(ctx context.Context, pi *ledgerdb.PaymentIntent) error {
	query := `UPDATE payment_intents
			  SET status = $1, gateway_ref = $2, updated_at = $3
			  WHERE tenant_id = $4 AND id = $5`

	_, err := r.getExecutor().ExecContext(ctx, query,
		pi.Status, pi.GatewayRef, pi.UpdatedAt, pi.TenantID, pi.ID)
	if err != nil {
		return ledgerdb.NewQueryError("update_payment_intent", "failed to update payment intent", err)
	}
	return nil
}

func (r *PaymentIntentRepository) scanOne(ctx context.Context, op, query string, args ...interface{}) (*ledgerdb.PaymentIntent, error) {
	row := r.getExecutor().QueryRowContext(ctx, query, args...)
	pi, err := scanPaymentIntent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError(op, "failed to query payment intent", err)
	}
	return pi, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentIntent(s rowScanner) (*ledgerdb.PaymentIntent, error) {
	var pi ledgerdb.PaymentIntent
	var gatewayRef sql.NullString
	if err := s.Scan(&pi.ID, &pi.TenantID, &pi.Amount, &pi.Currency, &pi.Status,
		&pi.CustomerRef, &gatewayRef, &pi.CreatedAt, &pi.UpdatedAt); err != nil {
		return nil, err
	}
	if gatewayRef.Valid {
		pi.GatewayRef = &gatewayRef.String
	}
	return &pi, nil
}
