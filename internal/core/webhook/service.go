// Package webhook manages tenant webhook subscriptions and the delivery
// queue. Dispatching lives in the worker; this package owns enqueueing,
// endpoint CRUD and payload signing.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// Sign computes the hex HMAC-SHA256 signature sent in X-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Service manages endpoints and deliveries.
type Service struct {
	db  ledgerdb.Manager
	clk clock.Clock
	log *zap.Logger
}

func NewService(db ledgerdb.Manager, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{db: db, clk: clk, log: log}
}

// CreateEndpoint registers a subscription with a freshly generated 32-byte
// hex secret.
func (s *Service) CreateEndpoint(ctx context.Context, tenantID, url string, events []string) (*ledgerdb.WebhookEndpoint, error) {
	if url == "" {
		return nil, problem.New(problem.KindInvalidArgument, "url is required", "/v1/webhooks")
	}
	if len(events) == 0 {
		events = []string{"*"}
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	endpoint := &ledgerdb.WebhookEndpoint{
		ID:        uuid.New(),
		TenantID:  tenantID,
		URL:       url,
		Secret:    hex.EncodeToString(secret),
		Events:    events,
		IsActive:  true,
		CreatedAt: s.clk.Now(),
	}
	if err := s.db.Webhooks().InsertEndpoint(ctx, endpoint); err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (s *Service) ListEndpoints(ctx context.Context, tenantID string) ([]ledgerdb.WebhookEndpoint, error) {
	return s.db.Webhooks().ListEndpoints(ctx, tenantID)
}

func (s *Service) DeleteEndpoint(ctx context.Context, tenantID string, id uuid.UUID) error {
	endpoint, err := s.db.Webhooks().GetEndpoint(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if endpoint == nil {
		return problem.New(problem.KindNotFound, "webhook endpoint not found", "/v1/webhooks/"+id.String())
	}
	return s.db.Webhooks().DeleteEndpoint(ctx, tenantID, id)
}

// Enqueue inserts one PENDING delivery per active endpoint subscribed to
// eventType. PENDING rows become due immediately (next_retry_at = now).
func (s *Service) Enqueue(ctx context.Context, tenantID, eventType string, payload []byte) error {
	endpoints, err := s.db.Webhooks().ListActiveEndpoints(ctx, tenantID)
	if err != nil {
		return err
	}
	now := s.clk.Now()
	for i := range endpoints {
		if !endpoints[i].Matches(eventType) {
			continue
		}
		delivery := &ledgerdb.WebhookDelivery{
			ID:          uuid.New(),
			EndpointID:  endpoints[i].ID,
			TenantID:    tenantID,
			EventType:   eventType,
			Payload:     payload,
			Status:      ledgerdb.DeliveryPending,
			NextRetryAt: now,
			CreatedAt:   now,
		}
		if err := s.db.Webhooks().InsertDelivery(ctx, delivery); err != nil {
			return err
		}
		s.log.Debug("webhook delivery enqueued",
			zap.String("delivery_id", delivery.ID.String()),
			zap.String("endpoint_id", endpoints[i].ID.String()),
			zap.String("event_type", eventType))
	}
	return nil
}
