package postgres

import (
	"context"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// initSchema creates the tables the service needs. Requires the pgcrypto
// extension for gen_random_uuid and native JSONB support.
func (m *Manager) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		`CREATE TABLE IF NOT EXISTS tenants (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			plan VARCHAR(32) NOT NULL DEFAULT 'pro',
			region VARCHAR(32) NOT NULL DEFAULT 'region-a',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) REFERENCES tenants(id),
			email VARCHAR(320) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			is_global_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS roles (
			name VARCHAR(64) PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS permissions (
			code VARCHAR(128) PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS user_roles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id),
			role_name VARCHAR(64) NOT NULL REFERENCES roles(name),
			UNIQUE (user_id, role_name)
		)`,

		`CREATE TABLE IF NOT EXISTS role_permissions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			role_name VARCHAR(64) NOT NULL REFERENCES roles(name),
			permission_code VARCHAR(128) NOT NULL REFERENCES permissions(code),
			UNIQUE (role_name, permission_code)
		)`,

		`CREATE TABLE IF NOT EXISTS policies (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			permission_code VARCHAR(128) NOT NULL REFERENCES permissions(code) UNIQUE,
			effect VARCHAR(16) NOT NULL DEFAULT 'allow',
			allowed_plans VARCHAR(32)[] NOT NULL DEFAULT '{}',
			allowed_regions VARCHAR(32)[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS account_configs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			code VARCHAR(64) NOT NULL,
			label VARCHAR(128) NOT NULL,
			account_type VARCHAR(16) NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (tenant_id, code)
		)`,

		`CREATE TABLE IF NOT EXISTS payment_intents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			amount NUMERIC(18,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'CREATED',
			customer_ref VARCHAR(128) NOT NULL,
			gateway_ref VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			payment_intent_id UUID NOT NULL REFERENCES payment_intents(id),
			posted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			entry_id UUID NOT NULL REFERENCES ledger_entries(id) ON DELETE CASCADE,
			side VARCHAR(16) NOT NULL,
			account VARCHAR(64) NOT NULL,
			amount NUMERIC(18,2) NOT NULL,
			currency VARCHAR(8) NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS refunds (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			payment_intent_id UUID NOT NULL REFERENCES payment_intents(id),
			amount NUMERIC(18,2) NOT NULL,
			reason TEXT,
			status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
			gateway_ref VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS outbox_events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			event_type VARCHAR(128) NOT NULL,
			aggregate_type VARCHAR(64) NOT NULL,
			aggregate_id VARCHAR(128) NOT NULL,
			payload JSONB NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			attempts INTEGER NOT NULL DEFAULT 0,
			available_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			locked_at TIMESTAMPTZ,
			locked_by VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS webhook_endpoints (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			url VARCHAR(2048) NOT NULL,
			secret VARCHAR(128) NOT NULL,
			events VARCHAR(128)[] NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			endpoint_id UUID NOT NULL REFERENCES webhook_endpoints(id),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			event_type VARCHAR(128) NOT NULL,
			payload JSONB NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			attempts INTEGER NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMPTZ,
			response_code INTEGER,
			next_retry_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS reconciliation_discrepancies (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			payment_intent_id UUID REFERENCES payment_intents(id),
			discrepancy_type VARCHAR(32) NOT NULL,
			gateway_ref VARCHAR(128),
			expected_amount NUMERIC(18,2),
			actual_amount NUMERIC(18,2),
			expected_status VARCHAR(32),
			actual_status VARCHAR(64),
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			details JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_payment_intents_tenant ON payment_intents(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_intents_customer_ref ON payment_intents(tenant_id, customer_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_intents_gateway_ref ON payment_intents(tenant_id, gateway_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_tenant_posted ON ledger_entries(tenant_id, posted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_lines_entry ON ledger_lines(entry_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refunds_intent ON refunds(tenant_id, payment_intent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_claim ON outbox_events(status, available_at, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_due ON webhook_deliveries(status, next_retry_at)`,
		`CREATE INDEX IF NOT EXISTS idx_discrepancies_tenant ON reconciliation_discrepancies(tenant_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := m.db.ExecContext(ctx, query); err != nil {
			return ledgerdb.NewSchemaError("init_schema", "failed to execute schema query", err)
		}
	}
	return nil
}
