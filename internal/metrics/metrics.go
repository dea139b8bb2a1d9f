// Package metrics registers the Prometheus collectors shared by the HTTP
// server and the background worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	PaymentIntentsCreatedTotal   *prometheus.CounterVec
	PaymentIntentsConfirmedTotal *prometheus.CounterVec

	OutboxPublishedTotal *prometheus.CounterVec
	OutboxFailedTotal    *prometheus.CounterVec
	OutboxDeadTotal      *prometheus.CounterVec

	WebhookDeliveriesTotal *prometheus.CounterVec

	ReconciliationDiscrepanciesTotal *prometheus.CounterVec

	GatewayCallsTotal *prometheus.CounterVec
}

// New builds and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PaymentIntentsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_intents_created_total",
			Help: "Payment intents created per tenant.",
		}, []string{"tenant_id"}),
		PaymentIntentsConfirmedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_intents_confirmed_total",
			Help: "Payment intents confirmed per tenant.",
		}, []string{"tenant_id"}),
		OutboxPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox events published per event type.",
		}, []string{"event_type"}),
		OutboxFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_failed_total",
			Help: "Outbox publish failures per event type.",
		}, []string{"event_type"}),
		OutboxDeadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dead_total",
			Help: "Outbox events dead-lettered per event type.",
		}, []string{"event_type"}),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
		ReconciliationDiscrepanciesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciliation_discrepancies_total",
			Help: "Reconciliation discrepancies recorded per type.",
		}, []string{"discrepancy_type"}),
		GatewayCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Gateway calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.PaymentIntentsCreatedTotal,
		m.PaymentIntentsConfirmedTotal,
		m.OutboxPublishedTotal,
		m.OutboxFailedTotal,
		m.OutboxDeadTotal,
		m.WebhookDeliveriesTotal,
		m.ReconciliationDiscrepanciesTotal,
		m.GatewayCallsTotal,
	)
	return m
}
