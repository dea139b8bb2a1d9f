package worker

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/core/webhook"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/mq"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// OutboxDispatcher ships PENDING outbox rows to the broker. Rows are claimed
// under a lease so concurrent dispatchers partition the work; a publish
// failure backs the row off exponentially and dead-letters it after
// MaxAttempts.
type OutboxDispatcher struct {
	db        ledgerdb.Manager
	publisher mq.Publisher
	webhooks  *webhook.Service
	cfg       config.OutboxConfig
	clk       clock.Clock
	log       *zap.Logger
	met       *metrics.Metrics
	workerID  string

	// jitter returns a fraction of a second added to each backoff;
	// replaceable in tests.
	jitter func() float64
}

func NewOutboxDispatcher(db ledgerdb.Manager, publisher mq.Publisher, webhooks *webhook.Service,
	cfg config.OutboxConfig, clk clock.Clock, log *zap.Logger, met *metrics.Metrics, workerID string) *OutboxDispatcher {
	return &OutboxDispatcher{
		db:        db,
		publisher: publisher,
		webhooks:  webhooks,
		cfg:       cfg,
		clk:       clk,
		log:       log,
		met:       met,
		workerID:  workerID,
		jitter:    rand.Float64,
	}
}

// Run polls until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.Cycle(ctx); err != nil {
				d.log.Error("outbox cycle failed", zap.Error(err))
			}
		}
	}
}

// Cycle claims one batch and publishes it.
func (d *OutboxDispatcher) Cycle(ctx context.Context) error {
	events, err := d.db.Outbox().Claim(ctx, d.clk.Now(), d.cfg.LockTimeout, d.workerID, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	for i := range events {
		d.dispatch(ctx, &events[i])
	}
	return nil
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, event *ledgerdb.OutboxEvent) {
	body, correlationID, err := d.buildBody(event)
	if err != nil {
		d.log.Error("outbox event has malformed payload, dead-lettering",
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
		d.db.Outbox().MarkDead(ctx, event.ID)
		d.met.OutboxDeadTotal.WithLabelValues(event.EventType).Inc()
		return
	}

	if err := d.publisher.Publish(ctx, event.EventType, body, correlationID, event.TenantID); err != nil {
		d.handleFailure(ctx, event, err)
		return
	}

	if err := d.db.Outbox().MarkSent(ctx, event.ID); err != nil {
		d.log.Error("failed to mark outbox event sent",
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
		return
	}
	d.met.OutboxPublishedTotal.WithLabelValues(event.EventType).Inc()

	// Fan out to tenant webhooks now that the event is published.
	if d.webhooks != nil {
		if err := d.webhooks.Enqueue(ctx, event.TenantID, event.EventType, body); err != nil {
			d.log.Error("failed to enqueue webhook deliveries",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
		}
	}
}

// buildBody returns the published body (payload plus tenant_id) and the
// correlation id carried in the payload.
func (d *OutboxDispatcher) buildBody(event *ledgerdb.OutboxEvent) ([]byte, string, error) {
	var payload map[string]any
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, "", err
	}
	payload["tenant_id"] = event.TenantID
	correlationID, _ := payload["correlation_id"].(string)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	return body, correlationID, nil
}

func (d *OutboxDispatcher) handleFailure(ctx context.Context, event *ledgerdb.OutboxEvent, cause error) {
	attempts, err := d.db.Outbox().IncrementAttempts(ctx, event.ID)
	if err != nil {
		d.log.Error("failed to increment outbox attempts",
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
		return
	}

	if attempts >= d.cfg.MaxAttempts {
		d.log.Error("outbox event exhausted retries, dead-lettering",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", event.EventType),
			zap.Int("attempts", attempts),
			zap.Error(cause))
		d.db.Outbox().MarkDead(ctx, event.ID)
		d.met.OutboxDeadTotal.WithLabelValues(event.EventType).Inc()
		return
	}

	delay := d.backoff(attempts)
	d.log.Warn("outbox publish failed, rescheduling",
		zap.String("event_id", event.ID.String()),
		zap.Int("attempts", attempts),
		zap.Duration("delay", delay),
		zap.Error(cause))
	d.db.Outbox().Reschedule(ctx, event.ID, d.clk.Now().Add(delay))
	d.met.OutboxFailedTotal.WithLabelValues(event.EventType).Inc()
}

// backoff is min(60, 2^min(6, attempts)) seconds plus up to one second of
// jitter.
func (d *OutboxDispatcher) backoff(attempts int) time.Duration {
	exp := attempts
	if exp > 6 {
		exp = 6
	}
	secs := 1 << exp
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs)*time.Second + time.Duration(d.jitter()*float64(time.Second))
}
