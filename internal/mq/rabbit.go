// Package mq manages the AMQP connection, the exchange/queue topology and
// the publish/consume primitives used by the workers.
package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
)

// Publisher is the outbox dispatcher's view of the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, correlationID, tenantID string) error
}

// Broker owns one connection and one channel. The worker runs a single
// consumer, so a single channel is enough.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  config.RabbitConfig
	log  *zap.Logger
}

// Connect dials the broker, opens a channel and declares the topology.
func Connect(cfg config.RabbitConfig, log *zap.Logger) (*Broker, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Heartbeat: cfg.Heartbeat})
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	b := &Broker{conn: conn, ch: ch, cfg: cfg, log: log}
	if err := b.declareTopology(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// declareTopology sets up the event exchange, the work queue with its
// dead-letter route, the DLQ itself and the bindings to the external
// exchanges the consumer listens on.
func (b *Broker) declareTopology() error {
	if err := b.ch.ExchangeDeclare(b.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", b.cfg.Exchange, err)
	}

	if _, err := b.ch.QueueDeclare(b.cfg.DLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring dlq %s: %w", b.cfg.DLQ, err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": b.cfg.DLQ,
	}
	if _, err := b.ch.QueueDeclare(b.cfg.Queue, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("declaring queue %s: %w", b.cfg.Queue, err)
	}

	for _, key := range []string{"payment.*", "tenant.*"} {
		if err := b.ch.QueueBind(b.cfg.Queue, key, b.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("binding %s to %s: %w", key, b.cfg.Exchange, err)
		}
	}

	externals := []struct {
		exchange string
		keys     []string
	}{
		{b.cfg.OrdersExchange, b.cfg.OrdersRoutingKeys},
		{b.cfg.SaaSExchange, b.cfg.SaaSRoutingKeys},
	}
	for _, ext := range externals {
		if ext.exchange == "" {
			continue
		}
		if err := b.ch.ExchangeDeclare(ext.exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring exchange %s: %w", ext.exchange, err)
		}
		for _, key := range ext.keys {
			if err := b.ch.QueueBind(b.cfg.Queue, key, ext.exchange, false, nil); err != nil {
				return fmt.Errorf("binding %s to %s: %w", key, ext.exchange, err)
			}
		}
	}
	return nil
}

// Publish sends a durable JSON message to the event exchange.
func (b *Broker) Publish(ctx context.Context, routingKey string, body []byte, correlationID, tenantID string) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers: amqp.Table{
			"X-Correlation-Id": correlationID,
			"X-Tenant-Id":      tenantID,
		},
	}
	if err := b.ch.PublishWithContext(ctx, b.cfg.Exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", routingKey, err)
	}
	return nil
}

// Consume returns the delivery stream for the work queue. Messages require a
// manual ack; a reject without requeue routes the message to the DLQ.
func (b *Broker) Consume() (<-chan amqp.Delivery, error) {
	if err := b.ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("setting prefetch: %w", err)
	}
	deliveries, err := b.ch.Consume(b.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("starting consumer: %w", err)
	}
	return deliveries, nil
}

func (b *Broker) Close() {
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
