package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/core/payment"
	"github.com/brunopk/paycore/internal/core/tenant"
	"github.com/brunopk/paycore/internal/shared/correlation"
)

// deliverySource abstracts the broker for tests.
type deliverySource interface {
	Consume() (<-chan amqp.Delivery, error)
}

// Consumer processes inbound broker messages. Handlers that fail cause a
// reject without requeue; the broker topology routes the message to the DLQ.
// Retrying is the producing outbox's job, not the consumer's.
type Consumer struct {
	source   deliverySource
	payments *payment.Service
	tenants  *tenant.Synchronizer
	log      *zap.Logger
}

func NewConsumer(source deliverySource, payments *payment.Service, tenants *tenant.Synchronizer, log *zap.Logger) *Consumer {
	return &Consumer{source: source, payments: payments, tenants: tenants, log: log}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := c.Handle(ctx, msg.RoutingKey, msg.Headers, msg.Body); err != nil {
				c.log.Error("message handling failed, rejecting",
					zap.String("routing_key", msg.RoutingKey),
					zap.Error(err))
				msg.Reject(false)
				continue
			}
			msg.Ack(false)
		}
	}
}

// Handle dispatches one message by routing key.
func (c *Consumer) Handle(ctx context.Context, routingKey string, headers amqp.Table, body []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("parsing message body: %w", err)
	}

	correlationID := headerString(headers, "X-Correlation-Id")
	if correlationID == "" {
		correlationID = pickString(payload, "correlation_id", "correlationId")
	}
	if correlationID == "" {
		correlationID = correlation.NewID()
	}
	tenantID := headerString(headers, "X-Tenant-Id")
	if tenantID == "" {
		tenantID = pickString(payload, "tenant_id", "tenantId")
	}

	ctx = correlation.WithCorrelationID(ctx, correlationID)
	ctx = correlation.WithTenantID(ctx, tenantID)
	ctx = correlation.WithSubject(ctx, "worker")

	switch routingKey {
	case "payment.authorized":
		return c.handleAuthorized(ctx, tenantID, payload)
	case "payment.charge_requested", "order.confirmed":
		return c.handleCharge(ctx, tenantID, payload)
	case "tenant.created":
		return c.tenants.Created(ctx,
			pickString(payload, "id", "tenant_id"),
			pickString(payload, "name"),
			pickString(payload, "plan"),
			pickString(payload, "region"))
	case "tenant.updated":
		return c.tenants.Updated(ctx,
			pickString(payload, "id", "tenant_id"),
			pickString(payload, "name"),
			pickString(payload, "plan"),
			pickString(payload, "region"))
	case "tenant.deleted":
		return c.tenants.Deleted(ctx, pickString(payload, "id", "tenant_id"))
	default:
		c.log.Warn("unhandled routing key, acking",
			zap.String("routing_key", routingKey))
		return nil
	}
}

func (c *Consumer) handleAuthorized(ctx context.Context, tenantID string, payload map[string]any) error {
	rawID := pickString(payload, "payment_intent_id", "paymentIntentId")
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid payment_intent_id %q: %w", rawID, err)
	}
	return c.payments.PostLedgerForAuthorized(ctx, tenantID, id)
}

// handleCharge normalizes the two payload shapes upstream systems emit
// (snake_case and camelCase) before handing off to the charge handler.
func (c *Consumer) handleCharge(ctx context.Context, tenantID string, payload map[string]any) error {
	charge := payment.Charge{
		OrderID:     pickString(payload, "order_id", "orderId"),
		TenantID:    tenantID,
		Currency:    pickString(payload, "currency"),
		CustomerRef: pickString(payload, "customer_ref", "customerRef"),
	}
	if charge.TenantID == "" {
		charge.TenantID = pickString(payload, "tenant_id", "tenantId")
	}
	if charge.OrderID == "" {
		return fmt.Errorf("charge event without order id")
	}

	amount, err := pickAmount(payload, "total_amount", "totalAmount", "amount")
	if err != nil {
		return err
	}
	charge.Amount = amount

	return c.payments.CreateFromCharge(ctx, charge)
}

func headerString(headers amqp.Table, key string) string {
	if headers == nil {
		return ""
	}
	v, _ := headers[key].(string)
	return v
}

func pickString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func pickAmount(payload map[string]any, keys ...string) (decimal.Decimal, error) {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case float64:
			return decimal.NewFromFloat(v), nil
		case string:
			if v == "" {
				continue
			}
			amount, err := decimal.NewFromString(v)
			if err != nil {
				return decimal.Zero, fmt.Errorf("invalid amount %q: %w", v, err)
			}
			return amount, nil
		case json.Number:
			amount, err := decimal.NewFromString(v.String())
			if err != nil {
				return decimal.Zero, fmt.Errorf("invalid amount %q: %w", v, err)
			}
			return amount, nil
		}
	}
	return decimal.Zero, fmt.Errorf("charge event without amount")
}
