package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// UserRepository implements ledgerdb.UserRepository for PostgreSQL.
type UserRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

func NewUserRepositoryWithTx(tx *sql.Tx) *UserRepository { return &UserRepository{tx: tx} }

func (r *UserRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*ledgerdb.User, error) {
	query := `SELECT id, tenant_id, email, password_hash, is_global_admin, created_at
			  FROM users WHERE email = $1`

	var u ledgerdb.User
	var tenantID sql.NullString
	err := r.getExecutor().QueryRowContext(ctx, query, email).
		Scan(&u.ID, &tenantID, &u.Email, &u.PasswordHash, &u.IsGlobalAdmin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("get_user_by_email", "failed to query user", err)
	}
	if tenantID.Valid {
		u.TenantID = &tenantID.String
	}
	return &u, nil
}

func (r *UserRepository) RolesFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `SELECT role_name FROM user_roles WHERE user_id = $1 ORDER BY role_name`

	rows, err := r.getExecutor().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, ledgerdb.NewQueryError("roles_for_user", "failed to query user roles", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, ledgerdb.NewQueryError("roles_for_user", "failed to scan row", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("roles_for_user", "error iterating rows", err)
	}
	return roles, nil
}

func (r *UserRepository) PermissionsFor(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT permission_code FROM role_permissions
			  WHERE role_name = ANY($1) ORDER BY permission_code`

	rows, err := r.getExecutor().QueryContext(ctx, query, pq.Array(roles))
	if err != nil {
		return nil, ledgerdb.NewQueryError("permissions_for_roles", "failed to query role permissions", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, ledgerdb.NewQueryError("permissions_for_roles", "failed to scan row", err)
		}
		perms = append(perms, code)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerdb.NewQueryError("permissions_for_roles", "error iterating rows", err)
	}
	return perms, nil
}

func (r *UserRepository) PolicyFor(ctx context.Context, permissionCode string) (*ledgerdb.Policy, error) {
	query := `SELECT id, permission_code, effect, allowed_plans, allowed_regions
			  FROM policies WHERE permission_code = $1`

	var p ledgerdb.Policy
	err := r.getExecutor().QueryRowContext(ctx, query, permissionCode).
		Scan(&p.ID, &p.PermissionCode, &p.Effect, pq.Array(&p.AllowedPlans), pq.Array(&p.AllowedRegions))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerdb.NewQueryError("policy_for_permission", "failed to query policy", err)
	}
	return &p, nil
}
