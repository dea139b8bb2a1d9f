package worker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/core/webhook"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
)

func newWebhookFixture(t *testing.T) (*WebhookDispatcher, *memory.Manager, *clock.Fixed) {
	t.Helper()
	db := memory.NewManager()
	require.NoError(t, db.Open(context.Background()))
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	cfg := config.WebhookConfig{BatchSize: 10, PollInterval: time.Second, HTTPTimeout: 5 * time.Second}
	d := NewWebhookDispatcher(db, cfg, clk, zap.NewNop(), metrics.New())
	return d, db, clk
}

func insertEndpoint(t *testing.T, db *memory.Manager, url, secret string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Webhooks().InsertEndpoint(context.Background(), &ledgerdb.WebhookEndpoint{
		ID:       id,
		TenantID: "tenant_demo",
		URL:      url,
		Secret:   secret,
		Events:   []string{"*"},
		IsActive: true,
	}))
	return id
}

func insertDelivery(t *testing.T, db *memory.Manager, endpointID uuid.UUID, at time.Time, payload []byte) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Webhooks().InsertDelivery(context.Background(), &ledgerdb.WebhookDelivery{
		ID:          id,
		EndpointID:  endpointID,
		TenantID:    "tenant_demo",
		EventType:   "payment.settled",
		Payload:     payload,
		Status:      ledgerdb.DeliveryPending,
		NextRetryAt: at,
		CreatedAt:   at,
	}))
	return id
}

func TestDeliverySignsBody(t *testing.T) {
	d, db, clk := newWebhookFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var gotSignature, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSignature = r.Header.Get("X-Signature")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	const secret = "whsec_test"
	payload := []byte(`{"payment_intent_id":"abc","tenant_id":"tenant_demo"}`)
	endpointID := insertEndpoint(t, db, srv.URL, secret)
	deliveryID := insertDelivery(t, db, endpointID, clk.Now(), payload)

	require.NoError(t, d.Cycle(ctx))

	mu.Lock()
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, payload, gotBody)
	// The signature covers the exact body bytes.
	assert.Equal(t, webhook.Sign(secret, payload), gotSignature)
	mu.Unlock()

	delivery, err := db.Webhooks().GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.DeliveryDelivered, delivery.Status)
	assert.Equal(t, 1, delivery.Attempts)
	require.NotNil(t, delivery.ResponseCode)
	assert.Equal(t, http.StatusOK, *delivery.ResponseCode)
}

func TestDeliveryRetryLadder(t *testing.T) {
	d, db, clk := newWebhookFixture(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	endpointID := insertEndpoint(t, db, srv.URL, "s")
	deliveryID := insertDelivery(t, db, endpointID, clk.Now(), []byte(`{}`))

	// Attempt 1 fails: retry in 60s.
	require.NoError(t, d.Cycle(ctx))
	delivery, err := db.Webhooks().GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.DeliveryRetrying, delivery.Status)
	assert.Equal(t, 1, delivery.Attempts)
	assert.Equal(t, clk.Now().Add(60*time.Second), delivery.NextRetryAt)

	// Attempt 2 fails: retry in 300s.
	clk.Advance(61 * time.Second)
	require.NoError(t, d.Cycle(ctx))
	delivery, err = db.Webhooks().GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.DeliveryRetrying, delivery.Status)
	assert.Equal(t, 2, delivery.Attempts)
	assert.Equal(t, clk.Now().Add(300*time.Second), delivery.NextRetryAt)

	// Attempt 3 exhausts the ladder.
	clk.Advance(301 * time.Second)
	require.NoError(t, d.Cycle(ctx))
	delivery, err = db.Webhooks().GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.DeliveryFailed, delivery.Status)
	assert.Equal(t, 3, delivery.Attempts)
}

func TestDeliveryToMissingEndpointFails(t *testing.T) {
	d, db, clk := newWebhookFixture(t)
	ctx := context.Background()

	deliveryID := insertDelivery(t, db, uuid.New(), clk.Now(), []byte(`{}`))

	require.NoError(t, d.Cycle(ctx))

	delivery, err := db.Webhooks().GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.DeliveryFailed, delivery.Status)
}

func TestDeliveryNotDueIsSkipped(t *testing.T) {
	d, db, clk := newWebhookFixture(t)
	ctx := context.Background()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpointID := insertEndpoint(t, db, srv.URL, "s")
	insertDelivery(t, db, endpointID, clk.Now().Add(time.Hour), []byte(`{}`))

	require.NoError(t, d.Cycle(ctx))
	assert.Equal(t, 0, calls)
}

func TestConnectionErrorSchedulesRetry(t *testing.T) {
	d, db, clk := newWebhookFixture(t)
	ctx := context.Background()

	// Point at a closed server so the POST errors at the transport level.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	endpointID := insertEndpoint(t, db, url, "s")
	deliveryID := insertDelivery(t, db, endpointID, clk.Now(), []byte(`{}`))

	require.NoError(t, d.Cycle(ctx))

	delivery, err := db.Webhooks().GetDelivery(ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.DeliveryRetrying, delivery.Status)
	assert.Equal(t, 1, delivery.Attempts)
	assert.Nil(t, delivery.ResponseCode)
}
