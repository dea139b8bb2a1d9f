// Package ledgerdb defines the persistent entities of the payments core and
// the repository interfaces its storage backends implement.
package ledgerdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentIntentStatus is the state-machine position of a payment intent.
type PaymentIntentStatus string

const (
	IntentCreated           PaymentIntentStatus = "CREATED"
	IntentAuthorized        PaymentIntentStatus = "AUTHORIZED"
	IntentSettled           PaymentIntentStatus = "SETTLED"
	IntentFailed            PaymentIntentStatus = "FAILED"
	IntentRefunded          PaymentIntentStatus = "REFUNDED"
	IntentPartiallyRefunded PaymentIntentStatus = "PARTIALLY_REFUNDED"
)

// Side is the ledger line direction.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Default account codes seeded for every tenant.
const (
	AccountCash          = "CASH"
	AccountRevenue       = "REVENUE"
	AccountRefundExpense = "REFUND_EXPENSE"
)

// SupportedCurrencies lists the currencies a payment intent may carry.
var SupportedCurrencies = map[string]bool{"BRL": true, "USD": true, "EUR": true}

// Tenant is the customer isolation unit. Provisioned externally and mutated
// only by inbound tenant events.
type Tenant struct {
	ID        string
	Name      string
	Plan      string
	Region    string
	CreatedAt time.Time
}

// PaymentIntent is the durable record of a charge through its lifecycle.
type PaymentIntent struct {
	ID          uuid.UUID
	TenantID    string
	Amount      decimal.Decimal
	Currency    string
	Status      PaymentIntentStatus
	CustomerRef string
	GatewayRef  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LedgerEntry is one balanced double-entry posting. It owns its lines.
type LedgerEntry struct {
	ID              uuid.UUID
	TenantID        string
	PaymentIntentID uuid.UUID
	PostedAt        time.Time
	Lines           []LedgerLine
}

// LedgerLine is a single debit or credit against an account.
type LedgerLine struct {
	ID       uuid.UUID
	TenantID string
	EntryID  uuid.UUID
	Side     Side
	Account  string
	Amount   decimal.Decimal
	Currency string
}

// AccountConfig maps a tenant's account code to its label and type.
type AccountConfig struct {
	ID          uuid.UUID
	TenantID    string
	Code        string
	Label       string
	AccountType string // ASSET | LIABILITY | EQUITY | REVENUE | EXPENSE
	IsDefault   bool
}

// RefundStatus is the lifecycle position of a refund.
type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundCompleted  RefundStatus = "COMPLETED"
	RefundFailed     RefundStatus = "FAILED"
)

// Refund is a partial or full reversal of a settled payment.
type Refund struct {
	ID              uuid.UUID
	TenantID        string
	PaymentIntentID uuid.UUID
	Amount          decimal.Decimal
	Reason          string
	Status          RefundStatus
	GatewayRef      *string
	CreatedAt       time.Time
}

// OutboxStatus is the delivery state of an outbox event.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxDead    OutboxStatus = "DEAD"
)

// OutboxEvent is a domain event written in the same transaction as the
// business state it describes. After insert, only the dispatcher mutates it.
type OutboxEvent struct {
	ID            uuid.UUID
	TenantID      string
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte // JSON
	Status        OutboxStatus
	Attempts      int
	AvailableAt   time.Time
	LockedAt      *time.Time
	LockedBy      string
	CreatedAt     time.Time
}

// WebhookEndpoint is a tenant's subscription to outbound events.
type WebhookEndpoint struct {
	ID        uuid.UUID
	TenantID  string
	URL       string
	Secret    string
	Events    []string
	IsActive  bool
	CreatedAt time.Time
}

// Matches reports whether the endpoint subscribes to eventType.
func (e *WebhookEndpoint) Matches(eventType string) bool {
	for _, ev := range e.Events {
		if ev == eventType || ev == "*" {
			return true
		}
	}
	return false
}

// DeliveryStatus is the state of one webhook delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryRetrying  DeliveryStatus = "RETRYING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// WebhookDelivery is one enqueued notification to one endpoint.
type WebhookDelivery struct {
	ID            uuid.UUID
	EndpointID    uuid.UUID
	TenantID      string
	EventType     string
	Payload       []byte // JSON
	Status        DeliveryStatus
	Attempts      int
	LastAttemptAt *time.Time
	ResponseCode  *int
	NextRetryAt   time.Time
	CreatedAt     time.Time
}

// DiscrepancyType classifies a reconciliation finding.
type DiscrepancyType string

const (
	DiscMissingLocal   DiscrepancyType = "MISSING_LOCAL"
	DiscMissingRemote  DiscrepancyType = "MISSING_REMOTE"
	DiscAmountMismatch DiscrepancyType = "AMOUNT_MISMATCH"
	DiscStatusMismatch DiscrepancyType = "STATUS_MISMATCH"
)

// Discrepancy records one difference between local state and the gateway.
type Discrepancy struct {
	ID              uuid.UUID
	TenantID        string
	PaymentIntentID *uuid.UUID
	Type            DiscrepancyType
	GatewayRef      string
	ExpectedAmount  *decimal.Decimal
	ActualAmount    *decimal.Decimal
	ExpectedStatus  string
	ActualStatus    string
	Resolved        bool
	Details         []byte // JSON
	CreatedAt       time.Time
}

// User is an API principal.
type User struct {
	ID            uuid.UUID
	TenantID      *string
	Email         string
	PasswordHash  string
	IsGlobalAdmin bool
	CreatedAt     time.Time
}

// Policy is the ABAC rule attached to a permission code.
type Policy struct {
	ID             uuid.UUID
	PermissionCode string
	Effect         string
	AllowedPlans   []string
	AllowedRegions []string
}

// RevenueRow is one row of the revenue-per-period report.
type RevenueRow struct {
	Period   time.Time
	Currency string
	Total    decimal.Decimal
}

// BalanceRow is one row of the account-balances report.
type BalanceRow struct {
	Account      string
	Currency     string
	DebitsTotal  decimal.Decimal
	CreditsTotal decimal.Decimal
	Balance      decimal.Decimal
}
