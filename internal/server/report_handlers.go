package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/brunopk/paycore/internal/auth"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

func (s *Server) handleLedgerEntries(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	from, to, err := timeRange(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.reports.LedgerEntries(r.Context(), correlation.TenantID(r.Context()), from, to, limit)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}

	type lineDTO struct {
		Side     string `json:"side"`
		Account  string `json:"account"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	type entryDTO struct {
		ID              string    `json:"id"`
		PaymentIntentID string    `json:"payment_intent_id"`
		PostedAt        string    `json:"posted_at"`
		Lines           []lineDTO `json:"lines"`
	}

	out := make([]entryDTO, 0, len(entries))
	for i := range entries {
		e := entryDTO{
			ID:              entries[i].ID.String(),
			PaymentIntentID: entries[i].PaymentIntentID.String(),
			PostedAt:        entries[i].PostedAt.UTC().Format(time.RFC3339),
		}
		for _, l := range entries[i].Lines {
			e.Lines = append(e.Lines, lineDTO{
				Side:     string(l.Side),
				Account:  l.Account,
				Amount:   l.Amount.StringFixed(2),
				Currency: l.Currency,
			})
		}
		out = append(out, e)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleRevenueReport(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	from, to, err := timeRange(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = "month"
	}

	rows, err := s.reports.Revenue(r.Context(), correlation.TenantID(r.Context()), granularity, from, to)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}

	type rowDTO struct {
		Period   string `json:"period"`
		Currency string `json:"currency"`
		Total    string `json:"total"`
	}
	out := make([]rowDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowDTO{
			Period:   row.Period.UTC().Format(time.RFC3339),
			Currency: row.Currency,
			Total:    row.Total.StringFixed(2),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"granularity": granularity, "rows": out})
}

func (s *Server) handleBalanceReport(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	from, to, err := timeRange(r)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}

	rows, err := s.reports.AccountBalances(r.Context(), correlation.TenantID(r.Context()), from, to)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}

	type rowDTO struct {
		Account  string `json:"account"`
		Currency string `json:"currency"`
		Debits   string `json:"debits_total"`
		Credits  string `json:"credits_total"`
		Balance  string `json:"balance"`
	}
	out := make([]rowDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowDTO{
			Account:  row.Account,
			Currency: row.Currency,
			Debits:   row.DebitsTotal.StringFixed(2),
			Credits:  row.CreditsTotal.StringFixed(2),
			Balance:  row.Balance.StringFixed(2),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"balances": out})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	accounts, err := s.accounts.List(r.Context(), correlation.TenantID(r.Context()))
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"accounts": toAccountDTOs(accounts)})
}

type createAccountRequest struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	AccountType string `json:"account_type"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	var req createAccountRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeProblem(w, r, err)
		return
	}
	cfg, err := s.accounts.Create(r.Context(), correlation.TenantID(r.Context()), req.Code, req.Label, req.AccountType)
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toAccountDTOs([]ledgerdb.AccountConfig{*cfg})[0])
}

type accountDTO struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Label       string `json:"label"`
	AccountType string `json:"account_type"`
	IsDefault   bool   `json:"is_default"`
}

func toAccountDTOs(accounts []ledgerdb.AccountConfig) []accountDTO {
	out := make([]accountDTO, 0, len(accounts))
	for i := range accounts {
		out = append(out, accountDTO{
			ID:          accounts[i].ID.String(),
			Code:        accounts[i].Code,
			Label:       accounts[i].Label,
			AccountType: accounts[i].AccountType,
			IsDefault:   accounts[i].IsDefault,
		})
	}
	return out
}

// timeRange parses the optional from/to query params as RFC3339 instants.
func timeRange(r *http.Request) (*time.Time, *time.Time, error) {
	parse := func(name string) (*time.Time, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, problem.Newf(problem.KindInvalidArgument, r.URL.Path, "invalid %s timestamp %q", name, raw)
		}
		return &t, nil
	}
	from, err := parse("from")
	if err != nil {
		return nil, nil, err
	}
	to, err := parse("to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
