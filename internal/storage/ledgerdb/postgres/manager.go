// Package postgres implements the ledgerdb storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// Manager implements ledgerdb.Manager for PostgreSQL.
type Manager struct {
	db  *sql.DB
	cfg config.DatabaseConfig

	paymentRepo *PaymentIntentRepository
	ledgerRepo  *LedgerRepository
	refundRepo  *RefundRepository
	accountRepo *AccountRepository
	outboxRepo  *OutboxRepository
	webhookRepo *WebhookRepository
	reconRepo   *DiscrepancyRepository
	tenantRepo  *TenantRepository
	userRepo    *UserRepository
}

// NewManager creates a PostgreSQL manager from the database configuration.
func NewManager(cfg config.DatabaseConfig) (*Manager, error) {
	if cfg.URL == "" {
		return nil, ledgerdb.NewConfigurationError("new_manager", "invalid configuration", ledgerdb.ErrMissingURL)
	}
	return &Manager{cfg: cfg}, nil
}

func (m *Manager) Open(ctx context.Context) error {
	db, err := sql.Open("postgres", m.cfg.URL)
	if err != nil {
		return ledgerdb.NewConnectionError("open", "failed to open database connection", err)
	}

	db.SetMaxOpenConns(m.cfg.MaxOpenConns)
	db.SetMaxIdleConns(m.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return ledgerdb.NewConnectionError("open", "failed to ping database", err)
	}

	m.db = db

	if err := m.initSchema(ctx); err != nil {
		m.db.Close()
		m.db = nil
		return ledgerdb.NewSchemaError("open", "failed to initialize schema", err)
	}

	m.paymentRepo = NewPaymentIntentRepository(db)
	m.ledgerRepo = NewLedgerRepository(db)
	m.refundRepo = NewRefundRepository(db)
	m.accountRepo = NewAccountRepository(db)
	m.outboxRepo = NewOutboxRepository(db)
	m.webhookRepo = NewWebhookRepository(db)
	m.reconRepo = NewDiscrepancyRepository(db)
	m.tenantRepo = NewTenantRepository(db)
	m.userRepo = NewUserRepository(db)

	return nil
}

func (m *Manager) Close(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		return ledgerdb.NewConnectionError("close", "failed to close database connection", err)
	}
	return nil
}

func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return ledgerdb.ErrDatabaseClosed
	}
	return m.db.PingContext(ctx)
}

func (m *Manager) PaymentIntents() ledgerdb.PaymentIntentRepository { return m.paymentRepo }
func (m *Manager) Ledger() ledgerdb.LedgerRepository               { return m.ledgerRepo }
func (m *Manager) Refunds() ledgerdb.RefundRepository              { return m.refundRepo }
func (m *Manager) Accounts() ledgerdb.AccountRepository            { return m.accountRepo }
func (m *Manager) Outbox() ledgerdb.OutboxRepository               { return m.outboxRepo }
func (m *Manager) Webhooks() ledgerdb.WebhookRepository            { return m.webhookRepo }
func (m *Manager) Discrepancies() ledgerdb.DiscrepancyRepository   { return m.reconRepo }
func (m *Manager) Tenants() ledgerdb.TenantRepository              { return m.tenantRepo }
func (m *Manager) Users() ledgerdb.UserRepository                  { return m.userRepo }

// DB exposes the raw handle for seed tooling.
func (m *Manager) DB() *sql.DB { return m.db }

func (m *Manager) WithTransaction(ctx context.Context, fn func(ledgerdb.TransactionContext) error) error {
	if m.db == nil {
		return ledgerdb.ErrDatabaseClosed
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return ledgerdb.NewTransactionError("begin", "failed to begin transaction", err)
	}

	tc := NewTransactionContext(tx)

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tc); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return ledgerdb.NewTransactionError("commit", "failed to commit transaction", err)
	}
	return nil
}
