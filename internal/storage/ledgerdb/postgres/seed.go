package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// Seed provisions the demo tenant, the role and permission model, ABAC
// policies and demo users. Every statement is an upsert, so running the seed
// twice is harmless.
func Seed(ctx context.Context, m *Manager) error {
	if m.db == nil {
		return ledgerdb.ErrDatabaseClosed
	}

	if err := m.Tenants().Insert(ctx, &ledgerdb.Tenant{
		ID:        "tenant_demo",
		Name:      "Demo Tenant",
		Plan:      "pro",
		Region:    "region-a",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	roles := []string{"admin", "ops", "sales"}
	for _, role := range roles {
		if _, err := m.db.ExecContext(ctx,
			`INSERT INTO roles (name) VALUES ($1) ON CONFLICT DO NOTHING`, role); err != nil {
			return ledgerdb.NewQueryError("seed_roles", "failed to insert role", err)
		}
	}

	permissions := []string{"payments:write", "payments:read", "ledger:read", "admin:write", "profile:read"}
	for _, perm := range permissions {
		if _, err := m.db.ExecContext(ctx,
			`INSERT INTO permissions (code) VALUES ($1) ON CONFLICT DO NOTHING`, perm); err != nil {
			return ledgerdb.NewQueryError("seed_permissions", "failed to insert permission", err)
		}
	}

	grants := map[string][]string{
		"admin": {"payments:write", "payments:read", "ledger:read", "admin:write", "profile:read"},
		"ops":   {"payments:write", "payments:read", "ledger:read", "profile:read"},
		"sales": {"payments:read", "profile:read"},
	}
	for role, perms := range grants {
		for _, perm := range perms {
			if _, err := m.db.ExecContext(ctx,
				`INSERT INTO role_permissions (role_name, permission_code) VALUES ($1, $2)
				 ON CONFLICT (role_name, permission_code) DO NOTHING`, role, perm); err != nil {
				return ledgerdb.NewQueryError("seed_role_permissions", "failed to grant permission", err)
			}
		}
	}

	policies := []struct {
		permission string
		plans      []string
		regions    []string
	}{
		{"payments:write", []string{"pro", "enterprise"}, []string{}},
		{"admin:write", []string{"enterprise"}, []string{"region-a"}},
	}
	for _, p := range policies {
		if _, err := m.db.ExecContext(ctx,
			`INSERT INTO policies (permission_code, effect, allowed_plans, allowed_regions)
			 VALUES ($1, 'allow', $2, $3)
			 ON CONFLICT (permission_code) DO NOTHING`,
			p.permission, pq.Array(p.plans), pq.Array(p.regions)); err != nil {
			return ledgerdb.NewQueryError("seed_policies", "failed to insert policy", err)
		}
	}

	users := []struct {
		email       string
		password    string
		tenantID    *string
		globalAdmin bool
		roles       []string
	}{
		{"admin@demo.local", "admin-password", strPtr("tenant_demo"), false, []string{"admin"}},
		{"ops@demo.local", "ops-password", strPtr("tenant_demo"), false, []string{"ops"}},
		{"sales@demo.local", "sales-password", strPtr("tenant_demo"), false, []string{"sales"}},
		{"root@platform.local", "root-password", nil, true, []string{"admin"}},
	}
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return ledgerdb.NewQueryError("seed_users", "failed to hash password", err)
		}
		var userID string
		err = m.db.QueryRowContext(ctx,
			`INSERT INTO users (tenant_id, email, password_hash, is_global_admin)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (email) DO UPDATE SET tenant_id = EXCLUDED.tenant_id
			 RETURNING id`,
			u.tenantID, u.email, string(hash), u.globalAdmin).Scan(&userID)
		if err != nil {
			return ledgerdb.NewQueryError("seed_users", "failed to insert user", err)
		}
		for _, role := range u.roles {
			if _, err := m.db.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2)
				 ON CONFLICT (user_id, role_name) DO NOTHING`, userID, role); err != nil {
				return ledgerdb.NewQueryError("seed_user_roles", "failed to assign role", err)
			}
		}
	}

	return seedDefaultAccounts(ctx, m, "tenant_demo")
}

func seedDefaultAccounts(ctx context.Context, m *Manager, tenantID string) error {
	defaults := []struct {
		code        string
		label       string
		accountType string
	}{
		{ledgerdb.AccountCash, "Cash", "ASSET"},
		{ledgerdb.AccountRevenue, "Revenue", "REVENUE"},
		{ledgerdb.AccountRefundExpense, "Refund Expense", "EXPENSE"},
	}
	for _, d := range defaults {
		if _, err := m.db.ExecContext(ctx,
			`INSERT INTO account_configs (tenant_id, code, label, account_type, is_default)
			 VALUES ($1, $2, $3, $4, TRUE)
			 ON CONFLICT (tenant_id, code) DO NOTHING`,
			tenantID, d.code, d.label, d.accountType); err != nil {
			return ledgerdb.NewQueryError("seed_default_accounts", "failed to insert account config", err)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
