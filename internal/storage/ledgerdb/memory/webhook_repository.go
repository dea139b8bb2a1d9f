package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type WebhookRepository struct {
	b backend
}

func (r *WebhookRepository) InsertEndpoint(ctx context.Context, e *ledgerdb.WebhookEndpoint) error {
	return r.b.mutate(func(s *store) error {
		cp := *e
		cp.Events = append([]string(nil), e.Events...)
		s.endpoints[e.ID] = &cp
		return nil
	})
}

func (r *WebhookRepository) ListEndpoints(ctx context.Context, tenantID string) ([]ledgerdb.WebhookEndpoint, error) {
	return r.listEndpoints(tenantID, false)
}

func (r *WebhookRepository) ListActiveEndpoints(ctx context.Context, tenantID string) ([]ledgerdb.WebhookEndpoint, error) {
	return r.listEndpoints(tenantID, true)
}

func (r *WebhookRepository) listEndpoints(tenantID string, activeOnly bool) ([]ledgerdb.WebhookEndpoint, error) {
	var results []ledgerdb.WebhookEndpoint
	err := r.b.view(func(s *store) error {
		for _, e := range s.endpoints {
			if e.TenantID != tenantID {
				continue
			}
			if activeOnly && !e.IsActive {
				continue
			}
			cp := *e
			cp.Events = append([]string(nil), e.Events...)
			results = append(results, cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}

func (r *WebhookRepository) GetEndpoint(ctx context.Context, tenantID string, id uuid.UUID) (*ledgerdb.WebhookEndpoint, error) {
	var result *ledgerdb.WebhookEndpoint
	err := r.b.view(func(s *store) error {
		if e, ok := s.endpoints[id]; ok && e.TenantID == tenantID {
			cp := *e
			cp.Events = append([]string(nil), e.Events...)
			result = &cp
		}
		return nil
	})
	return result, err
}

func (r *WebhookRepository) DeleteEndpoint(ctx context.Context, tenantID string, id uuid.UUID) error {
	return r.b.mutate(func(s *store) error {
		if e, ok := s.endpoints[id]; ok && e.TenantID == tenantID {
			delete(s.endpoints, id)
		}
		return nil
	})
}

func (r *WebhookRepository) InsertDelivery(ctx context.Context, d *ledgerdb.WebhookDelivery) error {
	return r.b.mutate(func(s *store) error {
		cp := *d
		s.deliveries[d.ID] = &cp
		return nil
	})
}

func (r *WebhookRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]ledgerdb.WebhookDelivery, error) {
	var due []ledgerdb.WebhookDelivery
	err := r.b.view(func(s *store) error {
		for _, d := range s.deliveries {
			if d.Status != ledgerdb.DeliveryPending && d.Status != ledgerdb.DeliveryRetrying {
				continue
			}
			if d.NextRetryAt.After(now) {
				continue
			}
			due = append(due, *d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRetryAt.Before(due[j].NextRetryAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *WebhookRepository) MarkDelivered(ctx context.Context, id uuid.UUID, responseCode int, at time.Time) error {
	return r.b.mutate(func(s *store) error {
		if d, ok := s.deliveries[id]; ok {
			d.Status = ledgerdb.DeliveryDelivered
			d.Attempts++
			d.ResponseCode = &responseCode
			attemptAt := at
			d.LastAttemptAt = &attemptAt
		}
		return nil
	})
}

func (r *WebhookRepository) RecordFailure(ctx context.Context, id uuid.UUID, responseCode *int, at time.Time) (int, error) {
	var attempts int
	err := r.b.mutate(func(s *store) error {
		if d, ok := s.deliveries[id]; ok {
			d.Attempts++
			d.ResponseCode = responseCode
			attemptAt := at
			d.LastAttemptAt = &attemptAt
			attempts = d.Attempts
		}
		return nil
	})
	return attempts, err
}

func (r *WebhookRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.b.mutate(func(s *store) error {
		if d, ok := s.deliveries[id]; ok {
			d.Status = ledgerdb.DeliveryFailed
		}
		return nil
	})
}

func (r *WebhookRepository) ScheduleRetry(ctx context.Context, id uuid.UUID, nextRetryAt time.Time) error {
	return r.b.mutate(func(s *store) error {
		if d, ok := s.deliveries[id]; ok {
			d.Status = ledgerdb.DeliveryRetrying
			d.NextRetryAt = nextRetryAt
		}
		return nil
	})
}

func (r *WebhookRepository) GetDelivery(ctx context.Context, id uuid.UUID) (*ledgerdb.WebhookDelivery, error) {
	var result *ledgerdb.WebhookDelivery
	err := r.b.view(func(s *store) error {
		if d, ok := s.deliveries[id]; ok {
			cp := *d
			result = &cp
		}
		return nil
	})
	return result, err
}
