// Package server exposes the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/auth"
	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/core/account"
	"github.com/brunopk/paycore/internal/core/payment"
	"github.com/brunopk/paycore/internal/core/reconciliation"
	"github.com/brunopk/paycore/internal/core/report"
	"github.com/brunopk/paycore/internal/core/webhook"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/storage/kv"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// Server wires the HTTP surface to the core services.
type Server struct {
	cfg *config.Config
	log *zap.Logger
	met *metrics.Metrics

	db  ledgerdb.Manager
	rdb *redis.Client

	auth     *auth.Service
	payments *payment.Service
	webhooks *webhook.Service
	recon    *reconciliation.Engine
	accounts *account.Service
	reports  *report.Service

	idemp   *kv.IdempotencyStore
	limiter *kv.RateLimiter
	chaos   *kv.ChaosStore
}

// Deps bundles the server's collaborators.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	DB       ledgerdb.Manager
	Redis    *redis.Client
	Auth     *auth.Service
	Payments *payment.Service
	Webhooks *webhook.Service
	Recon    *reconciliation.Engine
	Accounts *account.Service
	Reports  *report.Service
	Idemp    *kv.IdempotencyStore
	Limiter  *kv.RateLimiter
	Chaos    *kv.ChaosStore
}

func New(d Deps) *Server {
	return &Server{
		cfg:      d.Config,
		log:      d.Log,
		met:      d.Metrics,
		db:       d.DB,
		rdb:      d.Redis,
		auth:     d.Auth,
		payments: d.Payments,
		webhooks: d.Webhooks,
		recon:    d.Recon,
		accounts: d.Accounts,
		reports:  d.Reports,
		idemp:    d.Idemp,
		limiter:  d.Limiter,
		chaos:    d.Chaos,
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.correlationMiddleware, s.metricsMiddleware)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.met.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/auth/token", s.handleToken).Methods(http.MethodPost)
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	api.HandleFunc("/payment-intents", s.protected("payments:write", "write", s.handleCreateIntent)).Methods(http.MethodPost)
	api.HandleFunc("/payment-intents/{id}", s.protected("payments:read", "read", s.handleGetIntent)).Methods(http.MethodGet)
	api.HandleFunc("/payment-intents/{id}/confirm", s.protected("payments:write", "write", s.handleConfirmIntent)).Methods(http.MethodPost)
	api.HandleFunc("/payment-intents/{id}/refund", s.protected("payments:write", "write", s.handleRefundIntent)).Methods(http.MethodPost)
	api.HandleFunc("/payment-intents/{id}/refunds", s.protected("payments:read", "read", s.handleListRefunds)).Methods(http.MethodGet)

	api.HandleFunc("/ledger/entries", s.protected("ledger:read", "read", s.handleLedgerEntries)).Methods(http.MethodGet)
	api.HandleFunc("/reports/revenue", s.protected("ledger:read", "read", s.handleRevenueReport)).Methods(http.MethodGet)
	api.HandleFunc("/reports/account-balances", s.protected("ledger:read", "read", s.handleBalanceReport)).Methods(http.MethodGet)

	api.HandleFunc("/accounts", s.protected("ledger:read", "read", s.handleListAccounts)).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.protected("admin:write", "write", s.handleCreateAccount)).Methods(http.MethodPost)

	api.HandleFunc("/webhooks", s.protected("admin:write", "write", s.handleCreateWebhook)).Methods(http.MethodPost)
	api.HandleFunc("/webhooks", s.protected("admin:write", "read", s.handleListWebhooks)).Methods(http.MethodGet)
	api.HandleFunc("/webhooks/{id}", s.protected("admin:write", "write", s.handleDeleteWebhook)).Methods(http.MethodDelete)

	api.HandleFunc("/reconciliation/discrepancies", s.protected("payments:read", "read", s.handleListDiscrepancies)).Methods(http.MethodGet)
	api.HandleFunc("/reconciliation/discrepancies/{id}/resolve", s.protected("admin:write", "write", s.handleResolveDiscrepancy)).Methods(http.MethodPost)

	api.HandleFunc("/admin/chaos", s.protected("admin:write", "read", s.handleGetChaos)).Methods(http.MethodGet)
	api.HandleFunc("/admin/chaos", s.protected("admin:write", "write", s.handlePutChaos)).Methods(http.MethodPut)

	return r
}

// Run serves until ctx is cancelled, then drains with a grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.HTTP.Host, s.cfg.HTTP.Port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true
	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, checks)
}
