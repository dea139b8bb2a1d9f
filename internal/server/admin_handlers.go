package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/brunopk/paycore/internal/auth"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/kv"
)

type createWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type webhookDTO struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Secret    string   `json:"secret,omitempty"`
	Events    []string `json:"events"`
	IsActive  bool     `json:"is_active"`
	CreatedAt string   `json:"created_at"`
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	var req createWebhookRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeProblem(w, r, err)
		return
	}
	endpoint, err := s.webhooks.CreateEndpoint(r.Context(), correlation.TenantID(r.Context()), req.URL, req.Events)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	// The secret is shown once, at creation time.
	s.writeJSON(w, http.StatusCreated, webhookDTO{
		ID:        endpoint.ID.String(),
		URL:       endpoint.URL,
		Secret:    endpoint.Secret,
		Events:    endpoint.Events,
		IsActive:  endpoint.IsActive,
		CreatedAt: endpoint.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	endpoints, err := s.webhooks.ListEndpoints(r.Context(), correlation.TenantID(r.Context()))
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	out := make([]webhookDTO, 0, len(endpoints))
	for i := range endpoints {
		out = append(out, webhookDTO{
			ID:        endpoints[i].ID.String(),
			URL:       endpoints[i].URL,
			Events:    endpoints[i].Events,
			IsActive:  endpoints[i].IsActive,
			CreatedAt: endpoints[i].CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"webhooks": out})
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	if err := s.webhooks.DeleteEndpoint(r.Context(), correlation.TenantID(r.Context()), id); err != nil {
		s.writeProblem(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDiscrepancies(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	var resolved *bool
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeProblem(w, r, problem.Newf(problem.KindInvalidArgument, r.URL.Path, "invalid resolved filter %q", raw))
			return
		}
		resolved = &v
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	discrepancies, err := s.recon.List(r.Context(), correlation.TenantID(r.Context()), resolved, limit)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}

	type discrepancyDTO struct {
		ID              string  `json:"id"`
		PaymentIntentID *string `json:"payment_intent_id,omitempty"`
		Type            string  `json:"discrepancy_type"`
		GatewayRef      string  `json:"gateway_ref,omitempty"`
		ExpectedAmount  *string `json:"expected_amount,omitempty"`
		ActualAmount    *string `json:"actual_amount,omitempty"`
		ExpectedStatus  string  `json:"expected_status,omitempty"`
		ActualStatus    string  `json:"actual_status,omitempty"`
		Resolved        bool    `json:"resolved"`
		CreatedAt       string  `json:"created_at"`
	}
	out := make([]discrepancyDTO, 0, len(discrepancies))
	for i := range discrepancies {
		d := discrepancies[i]
		dto := discrepancyDTO{
			ID:             d.ID.String(),
			Type:           string(d.Type),
			GatewayRef:     d.GatewayRef,
			ExpectedStatus: d.ExpectedStatus,
			ActualStatus:   d.ActualStatus,
			Resolved:       d.Resolved,
			CreatedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
		}
		if d.PaymentIntentID != nil {
			id := d.PaymentIntentID.String()
			dto.PaymentIntentID = &id
		}
		dto.ExpectedAmount = amountString(d.ExpectedAmount)
		dto.ActualAmount = amountString(d.ActualAmount)
		out = append(out, dto)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"discrepancies": out})
}

func (s *Server) handleResolveDiscrepancy(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id, err := pathID(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	if err := s.recon.Resolve(r.Context(), correlation.TenantID(r.Context()), id); err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"resolved": true})
}

func (s *Server) handleGetChaos(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	cfg, err := s.chaos.Get(r.Context(), correlation.TenantID(r.Context()))
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutChaos(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	var cfg kv.ChaosConfig
	if err := decodeBody(r, &cfg); err != nil {
		s.writeProblem(w, r, err)
		return
	}
	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		s.writeProblem(w, r, problem.New(problem.KindInvalidArgument, "fail_rate must be between 0 and 1", r.URL.Path))
		return
	}
	if err := s.chaos.Set(r.Context(), correlation.TenantID(r.Context()), &cfg); err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, problem.Newf(problem.KindInvalidArgument, r.URL.Path, "invalid id %q", raw)
	}
	return id, nil
}

func amountString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}
