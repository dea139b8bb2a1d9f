package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// OutboxRepository implements ledgerdb.OutboxRepository for PostgreSQL.
type OutboxRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository { return &OutboxRepository{db: db} }

func NewOutboxRepositoryWithTx(tx *sql.Tx) *OutboxRepository { return &OutboxRepository{tx: tx} }

func (r *OutboxRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const outboxColumns = `id, tenant_id, event_type, aggregate_type, aggregate_id, payload, status, attempts, available_at, locked_at, locked_by, created_at`

func (r *OutboxRepository) Insert(ctx context.Context, e *ledgerdb.OutboxEvent) error {
	query := `INSERT INTO outbox_events (id, tenant_id, event_type, aggregate_type, aggregate_id, payload, status, attempts, available_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		e.ID, e.TenantID, e.EventType, e.AggregateType, e.AggregateID,
		e.Payload, e.Status, e.Attempts, e.AvailableAt, e.CreatedAt)
	if err != nil {
		return ledgerdb.NewQueryError("insert_outbox_event", "failed to insert outbox event", err)
	}
	return nil
}

// Claim leases a batch of due PENDING events for workerID. Rows locked by a
// crashed worker become claimable again once locked_at is older than
// lockTimeout. SKIP LOCKED keeps concurrent dispatchers from blocking on each
// other.
func (r *OutboxRepository) Claim(ctx context.Context, now time.Time, lockTimeout time.Duration, workerID string, limit int) ([]ledgerdb.OutboxEvent, error) {
	stale := now.Add(-lockTimeout)

	query := `UPDATE outbox_events
			  SET locked_at = $1, locked_by = $2
			  WHERE id IN (
				  SELECT id FROM outbox_events
				  WHERE status = 'PENDING'
					AND available_at <= $1
					AND (locked_at IS NULL OR locked_at < $3)
				  ORDER BY created_at ASC
				  LIMIT $4
				  FOR UPDATE SKIP LOCKED
			  )
			  RETURNING ` + outboxColumns

	rows, err := r.getExecutor().QueryContext(ctx, query, now, workerID, stale, limit)
	if err != nil {
		return nil, ledgerdb.NewQueryError("claim_outbox_events", "failed to claim outbox events", err)
	}
	defer rows.Close()

	var events []ledgerdb.OutboxEvent
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, ledgerdb.NewQueryError("claim_outbox_events", "failed to scan row", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("claim_outbox_events", "error iterating rows", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events
			  SET status = 'SENT', locked_at = NULL, locked_by = NULL
			  WHERE id = $1`
	if _, err := r.getExecutor().ExecContext(ctx, query, id); err != nil {
		return ledgerdb.NewQueryError("mark_outbox_sent", "failed to mark outbox event sent", err)
	}
	return nil
}

func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `UPDATE outbox_events
			  SET attempts = attempts + 1, locked_at = NULL, locked_by = NULL
			  WHERE id = $1
			  RETURNING attempts`

	var attempts int
	if err := r.getExecutor().QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		return 0, ledgerdb.NewQueryError("increment_outbox_attempts", "failed to increment attempts", err)
	}
	return attempts, nil
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events
			  SET status = 'DEAD', locked_at = NULL, locked_by = NULL
			  WHERE id = $1`
	if _, err := r.getExecutor().ExecContext(ctx, query, id); err != nil {
		return ledgerdb.NewQueryError("mark_outbox_dead", "failed to mark outbox event dead", err)
	}
	return nil
}

func (r *OutboxRepository) Reschedule(ctx context.Context, id uuid.UUID, availableAt time.Time) error {
	query := `UPDATE outbox_events SET available_at = $1 WHERE id = $2`
	if _, err := r.getExecutor().ExecContext(ctx, query, availableAt, id); err != nil {
		return ledgerdb.NewQueryError("reschedule_outbox_event", "failed to reschedule outbox event", err)
	}
	return nil
}

func (r *OutboxRepository) Get(ctx context.Context, id uuid.UUID) (*ledgerdb.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = $1`

	row := r.getExecutor().QueryRowContext(ctx, query, id)
	e, err := scanOutboxEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("get_outbox_event", "failed to query outbox event", err)
	}
	return e, nil
}

func scanOutboxEvent(s rowScanner) (*ledgerdb.OutboxEvent, error) {
	var e ledgerdb.OutboxEvent
	var lockedAt sql.NullTime
	var lockedBy sql.NullString
	if err := s.Scan(&e.ID, &e.TenantID, &e.EventType, &e.AggregateType, &e.AggregateID,
		&e.Payload, &e.Status, &e.Attempts, &e.AvailableAt, &lockedAt, &lockedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	if lockedAt.Valid {
		e.LockedAt = &lockedAt.Time
	}
	e.LockedBy = lockedBy.String
	return &e, nil
}
