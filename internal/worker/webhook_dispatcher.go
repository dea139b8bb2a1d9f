package worker

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/core/webhook"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// retryDelays is the bounded webhook retry ladder. A delivery that has failed
// len(retryDelays) times is marked FAILED for good.
var retryDelays = []time.Duration{60 * time.Second, 300 * time.Second, 1800 * time.Second}

// WebhookDispatcher posts due deliveries to their endpoints with an HMAC
// signature over the exact body bytes.
type WebhookDispatcher struct {
	db     ledgerdb.Manager
	client *http.Client
	cfg    config.WebhookConfig
	clk    clock.Clock
	log    *zap.Logger
	met    *metrics.Metrics
}

func NewWebhookDispatcher(db ledgerdb.Manager, cfg config.WebhookConfig, clk clock.Clock, log *zap.Logger, met *metrics.Metrics) *WebhookDispatcher {
	return &WebhookDispatcher{
		db:     db,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		clk:    clk,
		log:    log,
		met:    met,
	}
}

// Run polls until ctx is cancelled.
func (d *WebhookDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.Cycle(ctx); err != nil {
				d.log.Error("webhook cycle failed", zap.Error(err))
			}
		}
	}
}

// Cycle delivers one batch of due PENDING/RETRYING rows.
func (d *WebhookDispatcher) Cycle(ctx context.Context) error {
	due, err := d.db.Webhooks().ClaimDue(ctx, d.clk.Now(), d.cfg.BatchSize)
	if err != nil {
		return err
	}
	for i := range due {
		d.deliver(ctx, &due[i])
	}
	return nil
}

func (d *WebhookDispatcher) deliver(ctx context.Context, delivery *ledgerdb.WebhookDelivery) {
	endpoint, err := d.db.Webhooks().GetEndpoint(ctx, delivery.TenantID, delivery.EndpointID)
	if err != nil {
		d.log.Error("failed to load webhook endpoint", zap.Error(err))
		return
	}
	if endpoint == nil || !endpoint.IsActive {
		// Endpoint removed or disabled since enqueueing.
		d.db.Webhooks().MarkFailed(ctx, delivery.ID)
		d.met.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		return
	}

	code, err := d.post(ctx, endpoint, delivery.Payload)
	now := d.clk.Now()

	if err == nil && code >= 200 && code < 300 {
		if err := d.db.Webhooks().MarkDelivered(ctx, delivery.ID, code, now); err != nil {
			d.log.Error("failed to mark webhook delivered", zap.Error(err))
			return
		}
		d.met.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		return
	}

	var codePtr *int
	if code != 0 {
		codePtr = &code
	}
	attempts, rerr := d.db.Webhooks().RecordFailure(ctx, delivery.ID, codePtr, now)
	if rerr != nil {
		d.log.Error("failed to record webhook failure", zap.Error(rerr))
		return
	}

	if attempts >= len(retryDelays) {
		d.log.Warn("webhook delivery exhausted retries",
			zap.String("delivery_id", delivery.ID.String()),
			zap.String("url", endpoint.URL),
			zap.Int("attempts", attempts))
		d.db.Webhooks().MarkFailed(ctx, delivery.ID)
		d.met.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		return
	}

	next := now.Add(retryDelays[attempts-1])
	d.log.Info("webhook delivery failed, scheduling retry",
		zap.String("delivery_id", delivery.ID.String()),
		zap.Int("attempts", attempts),
		zap.Time("next_retry_at", next),
		zap.Error(err))
	d.db.Webhooks().ScheduleRetry(ctx, delivery.ID, next)
	d.met.WebhookDeliveriesTotal.WithLabelValues("retried").Inc()
}

func (d *WebhookDispatcher) post(ctx context.Context, endpoint *ledgerdb.WebhookEndpoint, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", webhook.Sign(endpoint.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
