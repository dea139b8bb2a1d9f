package postgres

import (
	"context"
	"database/sql"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// TenantRepository implements ledgerdb.TenantRepository for PostgreSQL.
type TenantRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewTenantRepository(db *sql.DB) *TenantRepository { return &TenantRepository{db: db} }

func NewTenantRepositoryWithTx(tx *sql.Tx) *TenantRepository { return &TenantRepository{tx: tx} }

func (r *TenantRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *TenantRepository) Insert(ctx context.Context, t *ledgerdb.Tenant) error {
	query := `INSERT INTO tenants (id, name, plan, region, created_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (id) DO NOTHING`

	_, err := r.getExecutor().ExecContext(ctx, query, t.ID, t.Name, t.Plan, t.Region, t.CreatedAt)
	if err != nil {
		return ledgerdb.NewQueryError("insert_tenant", "failed to insert tenant", err)
	}
	return nil
}

func (r *TenantRepository) Get(ctx context.Context, id string) (*ledgerdb.Tenant, error) {
	query := `SELECT id, name, plan, region, created_at FROM tenants WHERE id = $1`

	var t ledgerdb.Tenant
	err := r.getExecutor().QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.Name, &t.Plan, &t.Region, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("get_tenant", "failed to query tenant", err)
	}
	return &t, nil
}

func (r *TenantRepository) Update(ctx context.Context, t *ledgerdb.Tenant) error {
	query := `UPDATE tenants SET name = $1, plan = $2, region = $3 WHERE id = $4`

	_, err := r.getExecutor().ExecContext(ctx, query, t.Name, t.Plan, t.Region, t.ID)
	if err != nil {
		return ledgerdb.NewQueryError("update_tenant", "failed to update tenant", err)
	}
	return nil
}

func (r *TenantRepository) List(ctx context.Context) ([]ledgerdb.Tenant, error) {
	query := `SELECT id, name, plan, region, created_at FROM tenants ORDER BY id`

	rows, err := r.getExecutor().QueryContext(ctx, query)
	if err != nil {
		return nil, ledgerdb.NewQueryError("list_tenants", "failed to query tenants", err)
	}
	defer rows.Close()

	var tenants []ledgerdb.Tenant
	for rows.Next() {
		var t ledgerdb.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Plan, &t.Region, &t.CreatedAt); err != nil {
			return nil, ledgerdb.NewQueryError("list_tenants", "failed to scan row", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("list_tenants", "error iterating rows", err)
	}
	return tenants, nil
}
