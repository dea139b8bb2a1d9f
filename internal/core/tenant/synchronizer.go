// Package tenant applies inbound tenant lifecycle events to the local store.
// Tenants are provisioned by an external SaaS system; this service only
// mirrors them.
package tenant

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

const deletedPrefix = "[DELETED] "

// Synchronizer handles tenant.created/updated/deleted events.
type Synchronizer struct {
	db  ledgerdb.Manager
	clk clock.Clock
	log *zap.Logger
}

func NewSynchronizer(db ledgerdb.Manager, clk clock.Clock, log *zap.Logger) *Synchronizer {
	return &Synchronizer{db: db, clk: clk, log: log}
}

// Created inserts the tenant if absent and seeds its default accounts.
func (s *Synchronizer) Created(ctx context.Context, id, name, plan, region string) error {
	return s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		existing, err := tc.Tenants().Get(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		if err := tc.Tenants().Insert(ctx, &ledgerdb.Tenant{
			ID:        id,
			Name:      name,
			Plan:      plan,
			Region:    region,
			CreatedAt: s.clk.Now(),
		}); err != nil {
			return err
		}
		return seedDefaultAccounts(ctx, tc, id)
	})
}

// Updated patches name, plan and region of an existing tenant.
func (s *Synchronizer) Updated(ctx context.Context, id, name, plan, region string) error {
	return s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		t, err := tc.Tenants().Get(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			s.log.Warn("tenant.updated for unknown tenant", zap.String("tenant_id", id))
			return nil
		}
		if name != "" {
			t.Name = name
		}
		if plan != "" {
			t.Plan = plan
		}
		if region != "" {
			t.Region = region
		}
		return tc.Tenants().Update(ctx, t)
	})
}

// Deleted soft-deletes the tenant by prefixing its name. Business rows are
// kept for audit.
func (s *Synchronizer) Deleted(ctx context.Context, id string) error {
	return s.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		t, err := tc.Tenants().Get(ctx, id)
		if err != nil {
			return err
		}
		if t == nil || strings.HasPrefix(t.Name, deletedPrefix) {
			return nil
		}
		t.Name = deletedPrefix + t.Name
		return tc.Tenants().Update(ctx, t)
	})
}

func seedDefaultAccounts(ctx context.Context, tc ledgerdb.TransactionContext, tenantID string) error {
	defaults := []ledgerdb.AccountConfig{
		{Code: ledgerdb.AccountCash, Label: "Cash", AccountType: "ASSET"},
		{Code: ledgerdb.AccountRevenue, Label: "Revenue", AccountType: "REVENUE"},
		{Code: ledgerdb.AccountRefundExpense, Label: "Refund Expense", AccountType: "EXPENSE"},
	}
	for _, d := range defaults {
		d.ID = uuid.New()
		d.TenantID = tenantID
		d.IsDefault = true
		if err := tc.Accounts().Insert(ctx, &d); err != nil {
			return err
		}
	}
	return nil
}
