// Package report serves the ad-hoc aggregate queries of the reporting API.
package report

import (
	"context"
	"time"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

const maxEntries = 200

// Service wraps the ledger report queries.
type Service struct {
	db ledgerdb.Manager
}

func NewService(db ledgerdb.Manager) *Service {
	return &Service{db: db}
}

func (s *Service) LedgerEntries(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]ledgerdb.LedgerEntry, error) {
	if limit <= 0 || limit > maxEntries {
		limit = maxEntries
	}
	return s.db.Ledger().ListEntries(ctx, tenantID, from, to, limit)
}

func (s *Service) Revenue(ctx context.Context, tenantID, granularity string, from, to *time.Time) ([]ledgerdb.RevenueRow, error) {
	return s.db.Ledger().RevenueByPeriod(ctx, tenantID, granularity, from, to)
}

func (s *Service) AccountBalances(ctx context.Context, tenantID string, from, to *time.Time) ([]ledgerdb.BalanceRow, error) {
	return s.db.Ledger().AccountBalances(ctx, tenantID, from, to)
}
