package ledgerdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Manager is the storage backend entry point. Repositories obtained from the
// manager execute outside any transaction; repositories obtained from a
// TransactionContext share one transaction.
type Manager interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	PaymentIntents() PaymentIntentRepository
	Ledger() LedgerRepository
	Refunds() RefundRepository
	Accounts() AccountRepository
	Outbox() OutboxRepository
	Webhooks() WebhookRepository
	Discrepancies() DiscrepancyRepository
	Tenants() TenantRepository
	Users() UserRepository

	// WithTransaction runs fn inside a single transaction, committing when fn
	// returns nil and rolling back otherwise.
	WithTransaction(ctx context.Context, fn func(TransactionContext) error) error
}

// TransactionContext exposes transaction-scoped repositories.
type TransactionContext interface {
	PaymentIntents() PaymentIntentRepository
	Ledger() LedgerRepository
	Refunds() RefundRepository
	Accounts() AccountRepository
	Outbox() OutboxRepository
	Webhooks() WebhookRepository
	Discrepancies() DiscrepancyRepository
	Tenants() TenantRepository
	Users() UserRepository
}

// PaymentIntentRepository persists payment intents. Lookups return (nil, nil)
// when the row is absent.
type PaymentIntentRepository interface {
	Insert(ctx context.Context, pi *PaymentIntent) error
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*PaymentIntent, error)
	// GetForUpdate acquires a row-level lock; only valid inside a transaction.
	GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*PaymentIntent, error)
	GetByCustomerRef(ctx context.Context, tenantID, customerRef string) (*PaymentIntent, error)
	GetByGatewayRef(ctx context.Context, tenantID, gatewayRef string) (*PaymentIntent, error)
	ListWithGatewayRef(ctx context.Context, tenantID string) ([]PaymentIntent, error)
	Update(ctx context.Context, pi *PaymentIntent) error
}

// LedgerRepository persists balanced entries and serves the report queries.
type LedgerRepository interface {
	InsertEntry(ctx context.Context, entry *LedgerEntry) error
	ListEntries(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]LedgerEntry, error)
	RevenueByPeriod(ctx context.Context, tenantID, granularity string, from, to *time.Time) ([]RevenueRow, error)
	AccountBalances(ctx context.Context, tenantID string, from, to *time.Time) ([]BalanceRow, error)
}

// RefundRepository persists refunds.
type RefundRepository interface {
	Insert(ctx context.Context, r *Refund) error
	Update(ctx context.Context, r *Refund) error
	List(ctx context.Context, tenantID string, paymentIntentID uuid.UUID) ([]Refund, error)
	// SumActive returns the sum of refund amounts in any non-FAILED status.
	SumActive(ctx context.Context, tenantID string, paymentIntentID uuid.UUID) (decimal.Decimal, error)
}

// AccountRepository persists per-tenant account configuration.
type AccountRepository interface {
	Insert(ctx context.Context, a *AccountConfig) error
	Get(ctx context.Context, tenantID, code string) (*AccountConfig, error)
	List(ctx context.Context, tenantID string) ([]AccountConfig, error)
}

// OutboxRepository persists outbox events. Claim applies the lease protocol:
// rows must be PENDING, due, and unlocked or stale-locked; claimed rows are
// locked by workerID. Backends with row locks use skip-locked semantics.
type OutboxRepository interface {
	Insert(ctx context.Context, e *OutboxEvent) error
	Claim(ctx context.Context, now time.Time, lockTimeout time.Duration, workerID string, limit int) ([]OutboxEvent, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	// IncrementAttempts bumps the attempt counter, clears the lock and
	// returns the new count.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkDead(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, availableAt time.Time) error
	Get(ctx context.Context, id uuid.UUID) (*OutboxEvent, error)
}

// WebhookRepository persists endpoints and deliveries.
type WebhookRepository interface {
	InsertEndpoint(ctx context.Context, e *WebhookEndpoint) error
	ListEndpoints(ctx context.Context, tenantID string) ([]WebhookEndpoint, error)
	ListActiveEndpoints(ctx context.Context, tenantID string) ([]WebhookEndpoint, error)
	GetEndpoint(ctx context.Context, tenantID string, id uuid.UUID) (*WebhookEndpoint, error)
	DeleteEndpoint(ctx context.Context, tenantID string, id uuid.UUID) error

	InsertDelivery(ctx context.Context, d *WebhookDelivery) error
	// ClaimDue returns PENDING or RETRYING deliveries whose next_retry_at has
	// passed, oldest first.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]WebhookDelivery, error)
	// MarkDelivered records a successful attempt: it bumps the attempt
	// counter, stores the response code and flips the status.
	MarkDelivered(ctx context.Context, id uuid.UUID, responseCode int, at time.Time) error
	// RecordFailure bumps the attempt counter and returns the new count.
	RecordFailure(ctx context.Context, id uuid.UUID, responseCode *int, at time.Time) (int, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, nextRetryAt time.Time) error
	GetDelivery(ctx context.Context, id uuid.UUID) (*WebhookDelivery, error)
}

// DiscrepancyRepository persists reconciliation findings.
type DiscrepancyRepository interface {
	Insert(ctx context.Context, d *Discrepancy) error
	List(ctx context.Context, tenantID string, resolved *bool, limit int) ([]Discrepancy, error)
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*Discrepancy, error)
	Resolve(ctx context.Context, tenantID string, id uuid.UUID) error
}

// TenantRepository persists tenants.
type TenantRepository interface {
	Insert(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]Tenant, error)
}

// UserRepository serves authentication and authorization lookups.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	RolesFor(ctx context.Context, userID uuid.UUID) ([]string, error)
	PermissionsFor(ctx context.Context, roles []string) ([]string, error)
	PolicyFor(ctx context.Context, permissionCode string) (*Policy, error)
}
