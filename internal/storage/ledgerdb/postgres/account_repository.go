package postgres

import (
	"context"
	"database/sql"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// AccountRepository implements ledgerdb.AccountRepository for PostgreSQL.
type AccountRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewAccountRepository(db *sql.DB) *AccountRepository { return &AccountRepository{db: db} }

func NewAccountRepositoryWithTx(tx *sql.Tx) *AccountRepository { return &AccountRepository{tx: tx} }

func (r *AccountRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *AccountRepository) Insert(ctx context.Context, a *ledgerdb.AccountConfig) error {
	query := `INSERT INTO account_configs (id, tenant_id, code, label, account_type, is_default)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.getExecutor().ExecContext(ctx, query,
		a.ID, a.TenantID, a.Code, a.Label, a.AccountType, a.IsDefault)
	if err != nil {
		if isUniqueViolation(err) {
			return ledgerdb.NewQueryError("insert_account_config", "account code already exists", ledgerdb.ErrDuplicateEntry)
		}
		return ledgerdb.NewQueryError("insert_account_config", "failed to insert account config", err)
	}
	return nil
}

func (r *AccountRepository) Get(ctx context.Context, tenantID, code string) (*ledgerdb.AccountConfig, error) {
	query := `SELECT id, tenant_id, code, label, account_type, is_default
			  FROM account_configs WHERE tenant_id = $1 AND code = $2`

	var a ledgerdb.AccountConfig
	err := r.getExecutor().QueryRowContext(ctx, query, tenantID, code).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Label, &a.AccountType, &a.IsDefault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("get_account_config", "failed to query account config", err)
	}
	return &a, nil
}

func (r *AccountRepository) List(ctx context.Context, tenantID string) ([]ledgerdb.AccountConfig, error) {
	query := `SELECT id, tenant_id, code, label, account_type, is_default
			  FROM account_configs WHERE tenant_id = $1 ORDER BY code`

	rows, err := r.getExecutor().QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, ledgerdb.NewQueryError("list_account_configs", "failed to query account configs", err)
	}
	defer rows.Close()

	var accounts []ledgerdb.AccountConfig
	for rows.Next() {
		var a ledgerdb.AccountConfig
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Label, &a.AccountType, &a.IsDefault); err != nil {
			return nil, ledgerdb.NewQueryError("list_account_configs", "failed to scan row", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("list_account_configs", "error iterating rows", err)
	}
	return accounts, nil
}
