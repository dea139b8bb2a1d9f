// Package account manages per-tenant ledger account configuration.
package account

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

var validTypes = map[string]bool{
	"ASSET": true, "LIABILITY": true, "EQUITY": true, "REVENUE": true, "EXPENSE": true,
}

// Service exposes the accounts API operations.
type Service struct {
	db ledgerdb.Manager
}

func NewService(db ledgerdb.Manager) *Service {
	return &Service{db: db}
}

func (s *Service) List(ctx context.Context, tenantID string) ([]ledgerdb.AccountConfig, error) {
	return s.db.Accounts().List(ctx, tenantID)
}

// Create registers a new account code for the tenant. A duplicate code is a
// conflict.
func (s *Service) Create(ctx context.Context, tenantID, code, label, accountType string) (*ledgerdb.AccountConfig, error) {
	if code == "" {
		return nil, problem.New(problem.KindInvalidArgument, "code is required", "/v1/accounts")
	}
	if !validTypes[accountType] {
		return nil, problem.Newf(problem.KindInvalidArgument, "/v1/accounts", "invalid account_type %q", accountType)
	}

	cfg := &ledgerdb.AccountConfig{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Code:        code,
		Label:       label,
		AccountType: accountType,
	}
	if err := s.db.Accounts().Insert(ctx, cfg); err != nil {
		if errors.Is(err, ledgerdb.ErrDuplicateEntry) {
			return nil, problem.Newf(problem.KindConflict, "/v1/accounts", "account code %q already exists", code)
		}
		return nil, err
	}
	return cfg, nil
}
