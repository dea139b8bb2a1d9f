package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeRaw replays pre-serialized bytes, used by the idempotency layer so a
// replayed request gets the byte-identical body back.
func (s *Server) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := correlation.CorrelationID(r.Context())
	details := problem.DetailsFor(err, correlationID)
	if details.Status >= 500 {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", correlationID),
			zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(details.Status)
	json.NewEncoder(w).Encode(details)
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return problem.Wrap(err, problem.KindInvalidArgument, "malformed request body", r.URL.Path)
	}
	return nil
}
