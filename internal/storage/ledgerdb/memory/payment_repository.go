package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type PaymentIntentRepository struct {
	b backend
}

func (r *PaymentIntentRepository) Insert(ctx context.Context, pi *ledgerdb.PaymentIntent) error {
	return r.b.mutate(func(s *store) error {
		cp := *pi
		s.intents[pi.ID] = &cp
		return nil
	})
}

func (r *PaymentIntentRepository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.PaymentIntent, error) {
	var result *ledgerdb.PaymentIntent
	err := r.b.view(func(s *store) error {
		if pi, ok := s.intents[id]; ok && pi.TenantID == tenantID {
			cp := *pi
			result = &cp
		}
		return nil
	})
	return result, err
}

// GetForUpdate behaves like Get; the transaction snapshot already isolates
// concurrent writers.
func (r *PaymentIntentRepository) GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.PaymentIntent, error) {
	return r.Get(ctx, tenantID, id)
}

func (r *PaymentIntentRepository) GetByCustomerRef(ctx context.Context, tenantID, customerRef string) (*ledgerdb.PaymentIntent, error) {
	var result *ledgerdb.PaymentIntent
	err := r.b.view(func(s *store) error {
		for _, pi := range s.intents {
			if pi.TenantID == tenantID && pi.CustomerRef == customerRef {
				cp := *pi
				result = &cp
				return nil
			}
		}
		return nil
	})
	return result, err
}

func (r *PaymentIntentRepository) GetByGatewayRef(ctx context.Context, tenantID, gatewayRef string) (*ledgerdb.PaymentIntent, error) {
	var result *ledgerdb.PaymentIntent
	err := r.b.view(func(s *store) error {
		for _, pi := range s.intents {
			if pi.TenantID == tenantID && pi.GatewayRef != nil && *pi.GatewayRef == gatewayRef {
				cp := *pi
				result = &cp
				return nil
			}
		}
		return nil
	})
	return result, err
}

func (r *PaymentIntentRepository) ListWithGatewayRef(ctx context.Context, tenantID string) ([]ledgerdb.PaymentIntent, error) {
	var results []ledgerdb.PaymentIntent
	err := r.b.view(func(s *store) error {
		for _, pi := range s.intents {
			if pi.TenantID == tenantID && pi.GatewayRef != nil {
				results = append(results, *pi)
			}
		}
		return nil
	})
	return results, err
}

func (r *PaymentIntentRepository) Update(ctx context.Context, pi *ledgerdb.PaymentIntent) error {
	return r.b.mutate(func(s *store) error {
		existing, ok := s.intents[pi.ID]
		if !ok || existing.TenantID != pi.TenantID {
			return nil
		}
		existing.Status = pi.Status
		existing.GatewayRef = pi.GatewayRef
		existing.UpdatedAt = pi.UpdatedAt
		return nil
	})
}
