package postgres

import (
	"database/sql"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// TransactionContext exposes transaction-scoped repositories.
type TransactionContext struct {
	tx *sql.Tx

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

// NewTransactionContext binds all repositories to one transaction.
func NewTransactionContext(tx *sql.Tx) *TransactionContext {
	return &TransactionContext{
		tx:          tx,
		paymentRepo: NewPaymentIntentRepositoryWithTx(tx),
		ledgerRepo:  NewLedgerRepositoryWithTx(tx),
		refundRepo:  NewRefundRepositoryWithTx(tx),
		accountRepo: NewAccountRepositoryWithTx(tx),
		outboxRepo:  NewOutboxRepositoryWithTx(tx),
		webhookRepo: NewWebhookRepositoryWithTx(tx),
		reconRepo:   NewDiscrepancyRepositoryWithTx(tx),
		tenantRepo:  NewTenantRepositoryWithTx(tx),
		userRepo:    NewUserRepositoryWithTx(tx),
	}
}

func (tc *TransactionContext) PaymentIntents() ledgerdb.PaymentIntentRepository { return tc.paymentRepo }
func (tc *TransactionContext) Ledger() ledgerdb.LedgerRepository               { return tc.ledgerRepo }
func (tc *TransactionContext) Refunds() ledgerdb.RefundRepository              { return tc.refundRepo }
func (tc *TransactionContext) Accounts() ledgerdb.AccountRepository            { return tc.accountRepo }
func (tc *TransactionContext) Outbox() ledgerdb.OutboxRepository               { return tc.outboxRepo }
func (tc *TransactionContext) Webhooks() ledgerdb.WebhookRepository            { return tc.webhookRepo }
func (tc *TransactionContext) Discrepancies() ledgerdb.DiscrepancyRepository   { return tc.reconRepo }
func (tc *TransactionContext) Tenants() ledgerdb.TenantRepository              { return tc.tenantRepo }
func (tc *TransactionContext) Users() ledgerdb.UserRepository                  { return tc.userRepo }
