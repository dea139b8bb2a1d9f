package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/brunopk/paycore/internal/auth"
	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
)

// The fixture wires the routes that do not touch Redis: health, metrics,
// token issuance and identity lookup.
func newServerFixture(t *testing.T) (*Server, *memory.Manager) {
	t.Helper()
	db := memory.NewManager()
	require.NoError(t, db.Open(context.Background()))
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret",
			JWTIssuer:           "paycored-test",
			TokenExpiresSeconds: 3600,
		},
	}
	srv := New(Deps{
		Config:  cfg,
		Log:     zap.NewNop(),
		Metrics: metrics.New(),
		DB:      db,
		Auth:    auth.NewService(db, cfg.Auth, clk),
	})
	return srv, db
}

func seedServerUser(t *testing.T, db *memory.Manager, email, password string) {
	t.Helper()
	tenantID := "tenant_demo"
	require.NoError(t, db.Tenants().Insert(context.Background(), &ledgerdb.Tenant{
		ID: tenantID, Name: "Demo", Plan: "pro", Region: "region-a",
	}))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	users := db.Users().(*memory.UserRepository)
	users.SeedGrants(map[string][]string{"sales": {"payments:read"}}, nil)
	users.SeedUser(&ledgerdb.User{
		ID:           uuid.New(),
		TenantID:     &tenantID,
		Email:        email,
		PasswordHash: string(hash),
	}, []string{"sales"})
}

func TestHealthz(t *testing.T) {
	srv, _ := newServerFixture(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCorrelationHeader(t *testing.T) {
	srv, _ := newServerFixture(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"), "a missing correlation id is generated")

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-Id", "corr-echo")
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, "corr-echo", rec.Header().Get("X-Correlation-Id"))
}

func TestTokenAndMe(t *testing.T) {
	srv, db := newServerFixture(t)
	seedServerUser(t, db, "sales@demo.local", "s3cret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token",
		bytes.NewBufferString(`{"email":"sales@demo.local","password":"s3cret"}`))
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	assert.Equal(t, "bearer", tokenResp.TokenType)
	assert.Equal(t, 3600, tokenResp.ExpiresIn)
	require.NotEmpty(t, tokenResp.AccessToken)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		Subject  string   `json:"subject"`
		TenantID string   `json:"tenant_id"`
		Perms    []string `json:"perms"`
		Plan     string   `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "sales@demo.local", me.Subject)
	assert.Equal(t, "tenant_demo", me.TenantID)
	assert.Equal(t, []string{"payments:read"}, me.Perms)
	assert.Equal(t, "pro", me.Plan)
}

func TestTokenBadCredentials(t *testing.T) {
	srv, db := newServerFixture(t)
	seedServerUser(t, db, "sales@demo.local", "s3cret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token",
		bytes.NewBufferString(`{"email":"sales@demo.local","password":"wrong"}`))
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var details struct {
		Title         string `json:"title"`
		Status        int    `json:"status"`
		CorrelationID string `json:"correlation_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "Unauthorized", details.Title)
	assert.Equal(t, http.StatusUnauthorized, details.Status)
	assert.NotEmpty(t, details.CorrelationID)
}

func TestMeWithoutBearer(t *testing.T) {
	srv, _ := newServerFixture(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	srv, _ := newServerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewBufferString("{not json"))
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
