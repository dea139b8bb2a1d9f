package server

import (
	"net/http"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeProblem(w, r, err)
		return
	}

	token, err := s.auth.IssueToken(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   s.cfg.Auth.TokenExpiresSeconds,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, err := s.principalFrom(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subject":   principal.Subject,
		"tenant_id": principal.TenantID,
		"roles":     principal.Roles,
		"perms":     principal.Perms,
		"plan":      principal.Plan,
		"region":    principal.Region,
	})
}
