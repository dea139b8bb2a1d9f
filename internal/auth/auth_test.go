package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
)

const (
	testTenant   = "tenant_demo"
	testPassword = "s3cret"
)

func authTestConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:           "test-secret",
		JWTIssuer:           "paycored-test",
		TokenExpiresSeconds: 3600,
	}
}

func newAuthFixture(t *testing.T) (*Service, *memory.Manager, *clock.Fixed) {
	t.Helper()
	db := memory.NewManager()
	require.NoError(t, db.Open(context.Background()))
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := NewService(db, authTestConfig(), clk)

	require.NoError(t, db.Tenants().Insert(context.Background(), &ledgerdb.Tenant{
		ID: testTenant, Name: "Demo", Plan: "pro", Region: "region-a",
	}))

	users := db.Users().(*memory.UserRepository)
	users.SeedGrants(map[string][]string{
		"admin": {"payments:write", "payments:read", "ledger:read", "admin:write"},
		"sales": {"payments:write", "payments:read"},
		"ops":   {"payments:read", "ledger:read"},
	}, []ledgerdb.Policy{
		{PermissionCode: "payments:write", Effect: "allow", AllowedPlans: []string{"pro", "enterprise"}},
		{PermissionCode: "admin:write", Effect: "allow", AllowedPlans: []string{"enterprise"}, AllowedRegions: []string{"region-a"}},
	})
	return svc, db, clk
}

func seedUser(t *testing.T, db *memory.Manager, email string, tenantID *string, global bool, roles ...string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	db.Users().(*memory.UserRepository).SeedUser(&ledgerdb.User{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Email:         email,
		PasswordHash:  string(hash),
		IsGlobalAdmin: global,
	}, roles)
}

func strPtr(s string) *string { return &s }

func TestIssueAndVerifyToken(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()
	seedUser(t, db, "sales@demo.local", strPtr(testTenant), false, "sales")

	token, err := svc.IssueToken(ctx, "sales@demo.local", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "sales@demo.local", p.Subject)
	assert.Equal(t, testTenant, p.TenantID)
	assert.Equal(t, []string{"sales"}, p.Roles)
	assert.ElementsMatch(t, []string{"payments:write", "payments:read"}, p.Perms)
	assert.Equal(t, "pro", p.Plan)
	assert.Equal(t, "region-a", p.Region)
	assert.False(t, p.GlobalAdmin())
}

func TestIssueTokenRejectsBadCredentials(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()
	seedUser(t, db, "sales@demo.local", strPtr(testTenant), false, "sales")

	_, err := svc.IssueToken(ctx, "sales@demo.local", "wrong")
	assert.Equal(t, problem.KindUnauthorized, problem.KindOf(err))

	_, err = svc.IssueToken(ctx, "nobody@demo.local", testPassword)
	assert.Equal(t, problem.KindUnauthorized, problem.KindOf(err))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc, db, clk := newAuthFixture(t)
	seedUser(t, db, "sales@demo.local", strPtr(testTenant), false, "sales")

	token, err := svc.IssueToken(context.Background(), "sales@demo.local", testPassword)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = svc.Verify(token)
	assert.Equal(t, problem.KindUnauthorized, problem.KindOf(err))
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	seedUser(t, db, "sales@demo.local", strPtr(testTenant), false, "sales")

	token, err := svc.IssueToken(context.Background(), "sales@demo.local", testPassword)
	require.NoError(t, err)

	other := NewService(db, config.AuthConfig{
		JWTSecret: "other-secret", JWTIssuer: "paycored-test", TokenExpiresSeconds: 3600,
	}, clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	_, err = other.Verify(token)
	assert.Equal(t, problem.KindUnauthorized, problem.KindOf(err))
}

func TestAuthorizeTenantScoping(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()
	seedUser(t, db, "sales@demo.local", strPtr(testTenant), false, "sales")

	token, err := svc.IssueToken(ctx, "sales@demo.local", testPassword)
	require.NoError(t, err)
	p, err := svc.Verify(token)
	require.NoError(t, err)

	assert.NoError(t, svc.Authorize(ctx, p, testTenant, "payments:write"))

	err = svc.Authorize(ctx, p, "tenant_other", "payments:write")
	assert.Equal(t, problem.KindForbidden, problem.KindOf(err))
}

func TestAuthorizeMissingPermission(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()
	seedUser(t, db, "ops@demo.local", strPtr(testTenant), false, "ops")

	token, err := svc.IssueToken(ctx, "ops@demo.local", testPassword)
	require.NoError(t, err)
	p, err := svc.Verify(token)
	require.NoError(t, err)

	assert.NoError(t, svc.Authorize(ctx, p, testTenant, "ledger:read"))

	err = svc.Authorize(ctx, p, testTenant, "payments:write")
	assert.Equal(t, problem.KindForbidden, problem.KindOf(err))
}

func TestAuthorizeABACPlanRestriction(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()
	seedUser(t, db, "admin@demo.local", strPtr(testTenant), false, "admin")

	token, err := svc.IssueToken(ctx, "admin@demo.local", testPassword)
	require.NoError(t, err)
	p, err := svc.Verify(token)
	require.NoError(t, err)

	// payments:write allows the pro plan; admin:write wants enterprise.
	assert.NoError(t, svc.Authorize(ctx, p, testTenant, "payments:write"))

	err = svc.Authorize(ctx, p, testTenant, "admin:write")
	assert.Equal(t, problem.KindForbidden, problem.KindOf(err))
}

func TestGlobalAdminBypassesTenantAndABAC(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()
	seedUser(t, db, "root@platform.local", nil, true, "admin")

	token, err := svc.IssueToken(ctx, "root@platform.local", testPassword)
	require.NoError(t, err)
	p, err := svc.Verify(token)
	require.NoError(t, err)
	assert.True(t, p.GlobalAdmin())
	assert.Empty(t, p.Plan)

	// Any tenant, and ABAC plan checks do not apply.
	assert.NoError(t, svc.Authorize(ctx, p, testTenant, "admin:write"))
	assert.NoError(t, svc.Authorize(ctx, p, "tenant_other", "payments:write"))

	// RBAC still applies to global admins.
	err = svc.Authorize(ctx, p, testTenant, "profile:read")
	assert.Equal(t, problem.KindForbidden, problem.KindOf(err))
}
