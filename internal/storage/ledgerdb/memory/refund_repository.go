package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type RefundRepository struct {
	b backend
}

func (r *RefundRepository) Insert(ctx context.Context, ref *ledgerdb.Refund) error {
	return r.b.mutate(func(s *store) error {
		cp := *ref
		s.refunds[ref.ID] = &cp
		return nil
	})
}

func (r *RefundRepository) Update(ctx context.Context, ref *ledgerdb.Refund) error {
	return r.b.mutate(func(s *store) error {
		existing, ok := s.refunds[ref.ID]
		if !ok || existing.TenantID != ref.TenantID {
			return nil
		}
		existing.Status = ref.Status
		existing.GatewayRef = ref.GatewayRef
		return nil
	})
}

func (r *RefundRepository) List(ctx context.Context, tenantID string, paymentIntentID uuid.UUID) ([]ledgerdb.Refund, error) {
	var results []ledgerdb.Refund
	err := r.b.view(func(s *store) error {
		for _, ref := range s.refunds {
			if ref.TenantID == tenantID && ref.PaymentIntentID == paymentIntentID {
				results = append(results, *ref)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}

func (r *RefundRepository) SumActive(ctx context.Context, tenantID string, paymentIntentID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.b.view(func(s *store) error {
		for _, ref := range s.refunds {
			if ref.TenantID == tenantID && ref.PaymentIntentID == paymentIntentID && ref.Status != ledgerdb.RefundFailed {
				total = total.Add(ref.Amount)
			}
		}
		return nil
	})
	return total, err
}
