package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type DiscrepancyRepository struct {
	b backend
}

func (r *DiscrepancyRepository) Insert(ctx context.Context, d *ledgerdb.Discrepancy) error {
	return r.b.mutate(func(s *store) error {
		cp := *d
		s.discrepancies[d.ID] = &cp
		return nil
	})
}

func (r *DiscrepancyRepository) List(ctx context.Context, tenantID string, resolved *bool, limit int) ([]ledgerdb.Discrepancy, error) {
	var results []ledgerdb.Discrepancy
	err := r.b.view(func(s *store) error {
		for _, d := range s.discrepancies {
			if d.TenantID != tenantID {
				continue
			}
			if resolved != nil && d.Resolved != *resolved {
				continue
			}
			results = append(results, *d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *DiscrepancyRepository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.Discrepancy, error) {
	var result *ledgerdb.Discrepancy
	err := r.b.view(func(s *store) error {
		if d, ok := s.discrepancies[id]; ok && d.TenantID == tenantID {
			cp := *d
			result = &cp
		}
		return nil
	})
	return result, err
}

func (r *DiscrepancyRepository) Resolve(ctx context.Context, tenantID string, id uuid.UUID) error {
	return r.b.mutate(func(s *store) error {
		if d, ok := s.discrepancies[id]; ok && d.TenantID == tenantID {
			d.Resolved = true
		}
		return nil
	})
}
