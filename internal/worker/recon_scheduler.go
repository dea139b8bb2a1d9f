package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/core/reconciliation"
	"github.com/brunopk/paycore/internal/gateway"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// gatewayLister is the scheduler's view of the gateway adapter.
type gatewayLister interface {
	ListRecentTransactions(ctx context.Context, limit int) ([]gateway.Transaction, error)
}

// ReconScheduler periodically pulls the gateway's recent transactions and
// runs the reconciliation engine per tenant.
type ReconScheduler struct {
	db     ledgerdb.Manager
	engine *reconciliation.Engine
	gw     gatewayLister
	cfg    config.ReconConfig
	log    *zap.Logger
}

func NewReconScheduler(db ledgerdb.Manager, engine *reconciliation.Engine, gw gatewayLister,
	cfg config.ReconConfig, log *zap.Logger) *ReconScheduler {
	return &ReconScheduler{db: db, engine: engine, gw: gw, cfg: cfg, log: log}
}

// Run reconciles on every tick until ctx is cancelled.
func (s *ReconScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Cycle(ctx); err != nil {
				s.log.Error("reconciliation cycle failed", zap.Error(err))
			}
		}
	}
}

// Cycle reconciles every tenant against one batch of gateway transactions.
func (s *ReconScheduler) Cycle(ctx context.Context) error {
	tenants, err := s.db.Tenants().List(ctx)
	if err != nil {
		return err
	}

	remote, err := s.gw.ListRecentTransactions(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range tenants {
		tctx := correlation.WithCorrelationID(ctx, correlation.NewID())
		tctx = correlation.WithTenantID(tctx, tenants[i].ID)
		tctx = correlation.WithSubject(tctx, "worker")
		if _, err := s.engine.Run(tctx, tenants[i].ID, remote); err != nil {
			s.log.Error("reconciliation failed for tenant",
				zap.String("tenant_id", tenants[i].ID),
				zap.Error(err))
		}
	}
	return nil
}
