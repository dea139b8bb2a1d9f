package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type OutboxRepository struct {
	b backend
}

func (r *OutboxRepository) Insert(ctx context.Context, e *ledgerdb.OutboxEvent) error {
	return r.b.mutate(func(s *store) error {
		cp := *e
		s.outbox[e.ID] = &cp
		return nil
	})
}

func (r *OutboxRepository) Claim(ctx context.Context, now time.Time, lockTimeout time.Duration, workerID string, limit int) ([]ledgerdb.OutboxEvent, error) {
	stale := now.Add(-lockTimeout)
	var claimed []ledgerdb.OutboxEvent
	err := r.b.mutate(func(s *store) error {
		var candidates []*ledgerdb.OutboxEvent
		for _, e := range s.outbox {
			if e.Status != ledgerdb.OutboxPending || e.AvailableAt.After(now) {
				continue
			}
			if e.LockedAt != nil && !e.LockedAt.Before(stale) {
				continue
			}
			candidates = append(candidates, e)
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		})
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}
		for _, e := range candidates {
			lockedAt := now
			e.LockedAt = &lockedAt
			e.LockedBy = workerID
			claimed = append(claimed, *e)
		}
		return nil
	})
	return claimed, err
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.b.mutate(func(s *store) error {
		if e, ok := s.outbox[id]; ok {
			e.Status = ledgerdb.OutboxSent
			e.LockedAt = nil
			e.LockedBy = ""
		}
		return nil
	})
}

func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.b.mutate(func(s *store) error {
		if e, ok := s.outbox[id]; ok {
			e.Attempts++
			e.LockedAt = nil
			e.LockedBy = ""
			attempts = e.Attempts
		}
		return nil
	})
	return attempts, err
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id uuid.UUID) error {
	return r.b.mutate(func(s *store) error {
		if e, ok := s.outbox[id]; ok {
			e.Status = ledgerdb.OutboxDead
			e.LockedAt = nil
			e.LockedBy = ""
		}
		return nil
	})
}

func (r *OutboxRepository) Reschedule(ctx context.Context, id uuid.UUID, availableAt time.Time) error {
	return r.b.mutate(func(s *store) error {
		if e, ok := s.outbox[id]; ok {
			e.AvailableAt = availableAt
		}
		return nil
	})
}

func (r *OutboxRepository) Get(ctx context.Context, id uuid.UUID) (*ledgerdb.OutboxEvent, error) {
	var result *ledgerdb.OutboxEvent
	err := r.b.view(func(s *store) error {
		if e, ok := s.outbox[id]; ok {
			cp := *e
			result = &cp
		}
		return nil
	})
	return result, err
}
