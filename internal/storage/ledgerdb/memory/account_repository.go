package memory

import (
	"context"
	"sort"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type AccountRepository struct {
	b backend
}

func (r *AccountRepository) Insert(ctx context.Context, a *ledgerdb.AccountConfig) error {
	return r.b.mutate(func(s *store) error {
		key := accountKey(a.TenantID, a.Code)
		if _, exists := s.accounts[key]; exists {
			return ledgerdb.NewQueryError("insert_account_config", "account code already exists", ledgerdb.ErrDuplicateEntry)
		}
		cp := *a
		s.accounts[key] = &cp
		return nil
	})
}

func (r *AccountRepository) Get(ctx context.Context, tenantID, code string) (*ledgerdb.AccountConfig, error) {
	var result *ledgerdb.AccountConfig
	err := r.b.view(func(s *store) error {
		if a, ok := s.accounts[accountKey(tenantID, code)]; ok {
			cp := *a
			result = &cp
		}
		return nil
	})
	return result, err
}

func (r *AccountRepository) List(ctx context.Context, tenantID string) ([]ledgerdb.AccountConfig, error) {
	var results []ledgerdb.AccountConfig
	err := r.b.view(func(s *store) error {
		for _, a := range s.accounts {
			if a.TenantID == tenantID {
				results = append(results, *a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Code < results[j].Code })
	return results, nil
}
