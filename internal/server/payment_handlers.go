package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/brunopk/paycore/internal/auth"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type intentResponse struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
	CustomerRef string  `json:"customer_ref"`
	GatewayRef  *string `json:"gateway_ref,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toIntentResponse(pi *ledgerdb.PaymentIntent) intentResponse {
	return intentResponse{
		ID:          pi.ID.String(),
		TenantID:    pi.TenantID,
		Amount:      pi.Amount.StringFixed(2),
		Currency:    pi.Currency,
		Status:      string(pi.Status),
		CustomerRef: pi.CustomerRef,
		GatewayRef:  pi.GatewayRef,
		CreatedAt:   pi.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		UpdatedAt:   pi.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type refundResponse struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          string `json:"amount"`
	Reason          string `json:"reason,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

func toRefundResponse(ref *ledgerdb.Refund) refundResponse {
	return refundResponse{
		ID:              ref.ID.String(),
		PaymentIntentID: ref.PaymentIntentID.String(),
		Amount:          ref.Amount.StringFixed(2),
		Reason:          ref.Reason,
		Status:          string(ref.Status),
		CreatedAt:       ref.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type createIntentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CustomerRef string          `json:"customer_ref"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	var req createIntentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeProblem(w, r, err)
		return
	}

	tenantID := correlation.TenantID(r.Context())
	pi, err := s.payments.Create(r.Context(), tenantID, req.Amount, req.Currency, req.CustomerRef)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toIntentResponse(pi))
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id, err := intentID(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	pi, err := s.payments.Get(r.Context(), correlation.TenantID(r.Context()), id)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toIntentResponse(pi))
}

func (s *Server) handleConfirmIntent(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id, err := intentID(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	tenantID := correlation.TenantID(r.Context())

	s.withIdempotency(w, r, tenantID, "confirm", id.String(), func() (any, error) {
		pi, err := s.payments.Confirm(r.Context(), tenantID, id)
		if err != nil {
			return nil, err
		}
		return toIntentResponse(pi), nil
	})
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (s *Server) handleRefundIntent(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id, err := intentID(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	var req refundRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeProblem(w, r, err)
		return
	}
	tenantID := correlation.TenantID(r.Context())

	s.withIdempotency(w, r, tenantID, "refund", id.String(), func() (any, error) {
		ref, err := s.payments.Refund(r.Context(), tenantID, id, req.Amount, req.Reason)
		if err != nil {
			return nil, err
		}
		return toRefundResponse(ref), nil
	})
}

func (s *Server) handleListRefunds(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	id, err := intentID(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	refunds, err := s.payments.ListRefunds(r.Context(), correlation.TenantID(r.Context()), id)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	out := make([]refundResponse, 0, len(refunds))
	for i := range refunds {
		out = append(out, toRefundResponse(&refunds[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"refunds": out})
}

// withIdempotency requires the Idempotency-Key header, replays the cached
// response on a repeat, and caches the serialized result otherwise.
func (s *Server) withIdempotency(w http.ResponseWriter, r *http.Request, tenantID, operation, resource string, fn func() (any, error)) {
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		s.writeProblem(w, r, problem.New(problem.KindInvalidArgument, "Idempotency-Key header is required", r.URL.Path))
		return
	}

	key := s.idemp.Key(tenantID, operation, resource, idempotencyKey)
	if cached, hit, err := s.idemp.Get(r.Context(), key); err == nil && hit {
		s.writeRaw(w, http.StatusOK, cached)
		return
	}

	result, err := fn()
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	if err := s.idemp.Put(r.Context(), key, body); err != nil {
		s.log.Warn("failed to store idempotency record")
	}
	s.writeRaw(w, http.StatusOK, body)
}

func intentID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, problem.Newf(problem.KindInvalidArgument, r.URL.Path, "invalid payment intent id %q", raw)
	}
	return id, nil
}
