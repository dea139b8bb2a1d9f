// Package memory implements the ledgerdb storage interfaces in process memory.
// It exists for tests and local experimentation; transactions take a snapshot
// of the full store and swap it in atomically on commit.
package memory

import (
	"context"
	"sync"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// backend gives repositories guarded access to a store.
type backend interface {
	view(fn func(*store) error) error
	mutate(fn func(*store) error) error
}

// Manager implements ledgerdb.Manager in memory.
type Manager struct {
	mu sync.RWMutex
	s  *store

	open bool
}

func NewManager() *Manager {
	return &Manager{s: newStore()}
}

func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return ledgerdb.ErrDatabaseClosed
	}
	return nil
}

func (m *Manager) view(fn func(*store) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.s)
}

func (m *Manager) mutate(fn func(*store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.s)
}

func (m *Manager) PaymentIntents() ledgerdb.PaymentIntentRepository {
	return &PaymentIntentRepository{b: m}
}
func (m *Manager) Ledger() ledgerdb.LedgerRepository             { return &LedgerRepository{b: m} }
func (m *Manager) Refunds() ledgerdb.RefundRepository            { return &RefundRepository{b: m} }
func (m *Manager) Accounts() ledgerdb.AccountRepository          { return &AccountRepository{b: m} }
func (m *Manager) Outbox() ledgerdb.OutboxRepository             { return &OutboxRepository{b: m} }
func (m *Manager) Webhooks() ledgerdb.WebhookRepository          { return &WebhookRepository{b: m} }
func (m *Manager) Discrepancies() ledgerdb.DiscrepancyRepository { return &DiscrepancyRepository{b: m} }
func (m *Manager) Tenants() ledgerdb.TenantRepository            { return &TenantRepository{b: m} }
func (m *Manager) Users() ledgerdb.UserRepository                { return &UserRepository{b: m} }

// WithTransaction runs fn against a clone of the store. The clone replaces
// the live store only when fn returns nil, so partial writes from a failed fn
// are never observable.
func (m *Manager) WithTransaction(ctx context.Context, fn func(ledgerdb.TransactionContext) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ledgerdb.ErrDatabaseClosed
	}

	clone := m.s.clone()
	tc := &transactionContext{b: &txBackend{s: clone}}

	if err := fn(tc); err != nil {
		return err
	}
	m.s = clone
	return nil
}

// txBackend serves repositories inside a transaction. The manager lock is
// already held, so access to the clone needs no further guarding.
type txBackend struct {
	s *store
}

func (t *txBackend) view(fn func(*store) error) error   { return fn(t.s) }
func (t *txBackend) mutate(fn func(*store) error) error { return fn(t.s) }

type transactionContext struct {
	b backend
}

func (tc *transactionContext) PaymentIntents() ledgerdb.PaymentIntentRepository {
	return &PaymentIntentRepository{b: tc.b}
}
func (tc *transactionContext) Ledger() ledgerdb.LedgerRepository    { return &LedgerRepository{b: tc.b} }
func (tc *transactionContext) Refunds() ledgerdb.RefundRepository   { return &RefundRepository{b: tc.b} }
func (tc *transactionContext) Accounts() ledgerdb.AccountRepository { return &AccountRepository{b: tc.b} }
func (tc *transactionContext) Outbox() ledgerdb.OutboxRepository    { return &OutboxRepository{b: tc.b} }
func (tc *transactionContext) Webhooks() ledgerdb.WebhookRepository { return &WebhookRepository{b: tc.b} }
func (tc *transactionContext) Discrepancies() ledgerdb.DiscrepancyRepository {
	return &DiscrepancyRepository{b: tc.b}
}
func (tc *transactionContext) Tenants() ledgerdb.TenantRepository { return &TenantRepository{b: tc.b} }
func (tc *transactionContext) Users() ledgerdb.UserRepository     { return &UserRepository{b: tc.b} }
