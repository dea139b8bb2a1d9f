package memory

import (
	"context"
	"sort"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type TenantRepository struct {
	b backend
}

func (r *TenantRepository) Insert(ctx context.Context, t *ledgerdb.Tenant) error {
	return r.b.mutate(func(s *store) error {
		if _, exists := s.tenants[t.ID]; exists {
			return nil
		}
		cp := *t
		s.tenants[t.ID] = &cp
		return nil
	})
}

func (r *TenantRepository) Get(ctx context.Context, id string) (*ledgerdb.Tenant, error) {
	var result *ledgerdb.Tenant
	err := r.b.view(func(s *store) error {
		if t, ok := s.tenants[id]; ok {
			cp := *t
			result = &cp
		}
		return nil
	})
	return result, err
}

func (r *TenantRepository) Update(ctx context.Context, t *ledgerdb.Tenant) error {
	return r.b.mutate(func(s *store) error {
		existing, ok := s.tenants[t.ID]
		if !ok {
			return nil
		}
		existing.Name = t.Name
		existing.Plan = t.Plan
		existing.Region = t.Region
		return nil
	})
}

func (r *TenantRepository) List(ctx context.Context) ([]ledgerdb.Tenant, error) {
	var results []ledgerdb.Tenant
	err := r.b.view(func(s *store) error {
		for _, t := range s.tenants {
			results = append(results, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}
