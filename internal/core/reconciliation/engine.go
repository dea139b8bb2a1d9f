// Package reconciliation diffs local payment intents against the gateway's
// view and records typed discrepancies.
package reconciliation

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/gateway"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// expectedGatewayStatuses maps a local intent status to the gateway statuses
// that agree with it. The FAILED entry includes requires_payment_method even
// though some providers use it for in-flight retries; flagged for review with
// product.
var expectedGatewayStatuses = map[ledgerdb.PaymentIntentStatus][]string{
	ledgerdb.IntentAuthorized: {"requires_capture", "requires_confirmation"},
	ledgerdb.IntentSettled:    {"succeeded"},
	ledgerdb.IntentFailed:     {"canceled", "requires_payment_method"},
}

// Engine runs the reconciliation algorithm.
type Engine struct {
	db  ledgerdb.Manager
	clk clock.Clock
	log *zap.Logger
	met *metrics.Metrics
}

func NewEngine(db ledgerdb.Manager, clk clock.Clock, log *zap.Logger, met *metrics.Metrics) *Engine {
	return &Engine{db: db, clk: clk, log: log, met: met}
}

// Run compares the gateway transactions against local intents for one tenant.
// All discrepancies and the summary outbox event land in one transaction.
func (e *Engine) Run(ctx context.Context, tenantID string, remote []gateway.Transaction) ([]ledgerdb.Discrepancy, error) {
	var found []ledgerdb.Discrepancy

	err := e.db.WithTransaction(ctx, func(tc ledgerdb.TransactionContext) error {
		found = found[:0]
		now := e.clk.Now()
		remoteRefs := make(map[string]bool, len(remote))

		for i := range remote {
			tx := remote[i]
			remoteRefs[tx.Ref] = true

			local, err := tc.PaymentIntents().GetByGatewayRef(ctx, tenantID, tx.Ref)
			if err != nil {
				return err
			}
			if local == nil {
				details, _ := json.Marshal(map[string]any{
					"gateway_ref": tx.Ref,
					"amount":      tx.Amount.StringFixed(2),
					"currency":    tx.Currency,
					"status":      tx.Status,
				})
				amt := tx.Amount
				found = append(found, ledgerdb.Discrepancy{
					ID:           uuid.New(),
					TenantID:     tenantID,
					Type:         ledgerdb.DiscMissingLocal,
					GatewayRef:   tx.Ref,
					ActualAmount: &amt,
					ActualStatus: tx.Status,
					Details:      details,
					CreatedAt:    now,
				})
				continue
			}

			if !local.Amount.Equal(tx.Amount) {
				expected := local.Amount
				actual := tx.Amount
				found = append(found, ledgerdb.Discrepancy{
					ID:              uuid.New(),
					TenantID:        tenantID,
					PaymentIntentID: &local.ID,
					Type:            ledgerdb.DiscAmountMismatch,
					GatewayRef:      tx.Ref,
					ExpectedAmount:  &expected,
					ActualAmount:    &actual,
					Details:         []byte("{}"),
					CreatedAt:       now,
				})
			}

			if expected, tracked := expectedGatewayStatuses[local.Status]; tracked && !contains(expected, tx.Status) {
				found = append(found, ledgerdb.Discrepancy{
					ID:              uuid.New(),
					TenantID:        tenantID,
					PaymentIntentID: &local.ID,
					Type:            ledgerdb.DiscStatusMismatch,
					GatewayRef:      tx.Ref,
					ExpectedStatus:  string(local.Status),
					ActualStatus:    tx.Status,
					Details:         []byte("{}"),
					CreatedAt:       now,
				})
			}
		}

		locals, err := tc.PaymentIntents().ListWithGatewayRef(ctx, tenantID)
		if err != nil {
			return err
		}
		for i := range locals {
			local := locals[i]
			if remoteRefs[*local.GatewayRef] {
				continue
			}
			expected := local.Amount
			found = append(found, ledgerdb.Discrepancy{
				ID:              uuid.New(),
				TenantID:        tenantID,
				PaymentIntentID: &local.ID,
				Type:            ledgerdb.DiscMissingRemote,
				GatewayRef:      *local.GatewayRef,
				ExpectedAmount:  &expected,
				ExpectedStatus:  string(local.Status),
				Details:         []byte("{}"),
				CreatedAt:       now,
			})
		}

		for i := range found {
			if err := tc.Discrepancies().Insert(ctx, &found[i]); err != nil {
				return err
			}
		}
		if len(found) == 0 {
			return nil
		}

		types := uniqueTypes(found)
		payload, err := json.Marshal(map[string]any{
			"tenant_id":         tenantID,
			"discrepancy_count": len(found),
			"types":             types,
			"correlation_id":    correlation.CorrelationID(ctx),
		})
		if err != nil {
			return err
		}
		return tc.Outbox().Insert(ctx, &ledgerdb.OutboxEvent{
			ID:            uuid.New(),
			TenantID:      tenantID,
			EventType:     "reconciliation.discrepancy_found",
			AggregateType: "reconciliation",
			AggregateID:   tenantID,
			Payload:       payload,
			Status:        ledgerdb.OutboxPending,
			AvailableAt:   now,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	for i := range found {
		e.met.ReconciliationDiscrepanciesTotal.WithLabelValues(string(found[i].Type)).Inc()
	}
	if len(found) > 0 {
		e.log.Info("reconciliation recorded discrepancies",
			zap.String("tenant_id", tenantID),
			zap.Int("count", len(found)))
	}
	return found, nil
}

// List returns discrepancies, optionally filtered by resolved state.
func (e *Engine) List(ctx context.Context, tenantID string, resolved *bool, limit int) ([]ledgerdb.Discrepancy, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return e.db.Discrepancies().List(ctx, tenantID, resolved, limit)
}

// Resolve marks a discrepancy resolved. Resolving twice is a no-op.
func (e *Engine) Resolve(ctx context.Context, tenantID string, id uuid.UUID) error {
	d, err := e.db.Discrepancies().Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if d == nil {
		return problem.New(problem.KindNotFound, "discrepancy not found",
			"/v1/reconciliation/discrepancies/"+id.String()+"/resolve")
	}
	return e.db.Discrepancies().Resolve(ctx, tenantID, id)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func uniqueTypes(found []ledgerdb.Discrepancy) []string {
	seen := make(map[string]bool)
	var types []string
	for i := range found {
		t := string(found[i].Type)
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types
}
