package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// WebhookRepository implements ledgerdb.WebhookRepository for PostgreSQL.
type WebhookRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository { return &WebhookRepository{db: db} }

func NewWebhookRepositoryWithTx(tx *sql.Tx) *WebhookRepository { return &WebhookRepository{tx: tx} }

func (r *WebhookRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *WebhookRepository) InsertEndpoint(ctx context.Context, e *ledgerdb.WebhookEndpoint) error {
	query := `INSERT INTO webhook_endpoints (id, tenant_id, url, secret, events, is_active, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		e.ID, e.TenantID, e.URL, e.Secret, pq.Array(e.Events), e.IsActive, e.CreatedAt)
	if err != nil {
		return ledgerdb.NewQueryError("insert_webhook_endpoint", "failed to insert webhook endpoint", err)
	}
	return nil
}

const endpointColumns = `id, tenant_id, url, secret, events, is_active, created_at`

func (r *WebhookRepository) ListEndpoints(ctx context.Context, tenantID string) ([]ledgerdb.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE tenant_id = $1 ORDER BY created_at`
	return r.queryEndpoints(ctx, "list_webhook_endpoints", query, tenantID)
}

func (r *WebhookRepository) ListActiveEndpoints(ctx context.Context, tenantID string) ([]ledgerdb.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE tenant_id = $1 AND is_active ORDER BY created_at`
	return r.queryEndpoints(ctx, "list_active_webhook_endpoints", query, tenantID)
}

func (r *WebhookRepository) queryEndpoints(ctx context.Context, op, query string, args ...interface{}) ([]ledgerdb.WebhookEndpoint, error) {
	rows, err := r.getExecutor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgerdb.NewQueryError(op, "failed to query webhook endpoints", err)
	}
	defer rows.Close()

	var endpoints []ledgerdb.WebhookEndpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, ledgerdb.NewQueryError(op, "failed to scan row", err)
		}
		endpoints = append(endpoints, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError(op, "error iterating rows", err)
	}
	return endpoints, nil
}

func (r *WebhookRepository) GetEndpoint(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE tenant_id = $1 AND id = $2`

	row := r.getExecutor().QueryRowContext(ctx, query, tenantID, id)
	e, err := scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("get_webhook_endpoint", "failed to query webhook endpoint", err)
	}
	return e, nil
}

func (r *WebhookRepository) DeleteEndpoint(ctx context.Context, tenantID string, id uuid.UUID) error {
	query := `DELETE FROM webhook_endpoints WHERE tenant_id = $1 AND id = $2`
	if _, err := r.getExecutor().ExecContext(ctx, query, tenantID, id); err != nil {
		return ledgerdb.NewQueryError("delete_webhook_endpoint", "failed to delete webhook endpoint", err)
	}
	return nil
}

func scanEndpoint(s rowScanner) (*ledgerdb.WebhookEndpoint, error) {
	var e ledgerdb.WebhookEndpoint
	if err := s.Scan(&e.ID, &e.TenantID, &e.URL, &e.Secret, pq.Array(&e.Events), &e.IsActive, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

const deliveryColumns = `id, endpoint_id, tenant_id, event_type, payload, status, attempts, last_attempt_at, response_code, next_retry_at, created_at`

func (r *WebhookRepository) InsertDelivery(ctx context.Context, d *ledgerdb.WebhookDelivery) error {
	query := `INSERT INTO webhook_deliveries (id, endpoint_id, tenant_id, event_type, payload, status, attempts, next_retry_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		d.ID, d.EndpointID, d.TenantID, d.EventType, d.Payload,
		d.Status, d.Attempts, d.NextRetryAt, d.CreatedAt)
	if err != nil {
		return ledgerdb.NewQueryError("insert_webhook_delivery", "failed to insert webhook delivery", err)
	}
	return nil
}

func (r *WebhookRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]ledgerdb.WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + `
			  FROM webhook_deliveries
			  WHERE status IN ('PENDING', 'RETRYING') AND next_retry_at <= $1
			  ORDER BY next_retry_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := r.getExecutor().QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, ledgerdb.NewQueryError("claim_due_deliveries", "failed to query due deliveries", err)
	}
	defer rows.Close()

	var deliveries []ledgerdb.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, ledgerdb.NewQueryError("claim_due_deliveries", "failed to scan row", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("claim_due_deliveries", "error iterating rows", err)
	}
	return deliveries, nil
}

func (r *WebhookRepository) MarkDelivered(ctx context.Context, id uuid.UUID, responseCode int, at time.Time) error {
	query := `UPDATE webhook_deliveries
			  SET status = 'DELIVERED', attempts = attempts + 1, response_code = $1, last_attempt_at = $2
			  WHERE id = $3`
	if _, err := r.getExecutor().ExecContext(ctx, query, responseCode, at, id); err != nil {
		return ledgerdb.NewQueryError("mark_delivery_delivered", "failed to mark delivery delivered", err)
	}
	return nil
}

func (r *WebhookRepository) RecordFailure(ctx context.Context, id uuid.UUID, responseCode *int, at time.Time) (int, error) {
	query := `UPDATE webhook_deliveries
			  SET attempts = attempts + 1, response_code = $1, last_attempt_at = $2
			  WHERE id = $3
			  RETURNING attempts`

	var attempts int
	if err := r.getExecutor().QueryRowContext(ctx, query, responseCode, at, id).Scan(&attempts); err != nil {
		return 0, ledgerdb.NewQueryError("record_delivery_failure", "failed to record delivery failure", err)
	}
	return attempts, nil
}

func (r *WebhookRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_deliveries SET status = 'FAILED' WHERE id = $1`
	if _, err := r.getExecutor().ExecContext(ctx, query, id); err != nil {
		return ledgerdb.NewQueryError("mark_delivery_failed", "failed to mark delivery failed", err)
	}
	return nil
}

func (r *WebhookRepository) ScheduleRetry(ctx context.Context, id uuid.UUID, nextRetryAt time.Time) error {
	query := `UPDATE webhook_deliveries SET status = 'RETRYING', next_retry_at = $1 WHERE id = $2`
	if _, err := r.getExecutor().ExecContext(ctx, query, nextRetryAt, id); err != nil {
		return ledgerdb.NewQueryError("schedule_delivery_retry", "failed to schedule delivery retry", err)
	}
	return nil
}

func (r *WebhookRepository) GetDelivery(ctx context.Context, id uuid.UUID) (*ledgerdb.WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = $1`

	row := r.getExecutor().QueryRowContext(ctx, query, id)
	d, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("get_webhook_delivery", "failed to query webhook delivery", err)
	}
	return d, nil
}

func scanDelivery(s rowScanner) (*ledgerdb.WebhookDelivery, error) {
	var d ledgerdb.WebhookDelivery
	var lastAttempt sql.NullTime
	var responseCode sql.NullInt64
	if err := s.Scan(&d.ID, &d.EndpointID, &d.TenantID, &d.EventType, &d.Payload,
		&d.Status, &d.Attempts, &lastAttempt, &responseCode, &d.NextRetryAt, &d.CreatedAt); err != nil {
		return nil, err
	}
	if lastAttempt.Valid {
		d.LastAttemptAt = &lastAttempt.Time
	}
	if responseCode.Valid {
		code := int(responseCode.Int64)
		d.ResponseCode = &code
	}
	return &d, nil
}
