// Package auth issues and verifies bearer tokens and enforces the RBAC+ABAC
// authorization model. Tokens are HS256 JWTs carrying the principal's tenant,
// roles, permissions, plan and region.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/problem"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// globalTenant is the tid claim of a global admin; it matches every tenant.
const globalTenant = "*"

// Claims is the token payload.
type Claims struct {
	TenantID string   `json:"tid"`
	Roles    []string `json:"roles"`
	Perms    []string `json:"perms"`
	Plan     string   `json:"plan"`
	Region   string   `json:"region"`
	jwt.RegisteredClaims
}

// Principal is the verified caller identity.
type Principal struct {
	Subject  string
	TenantID string
	Roles    []string
	Perms    []string
	Plan     string
	Region   string
}

// GlobalAdmin reports whether the principal may act on any tenant.
func (p *Principal) GlobalAdmin() bool { return p.TenantID == globalTenant }

// HasPermission reports whether the principal carries the permission code.
func (p *Principal) HasPermission(code string) bool {
	for _, perm := range p.Perms {
		if perm == code {
			return true
		}
	}
	return false
}

// Service issues tokens and authorizes requests.
type Service struct {
	db  ledgerdb.Manager
	cfg config.AuthConfig
	clk clock.Clock
}

func NewService(db ledgerdb.Manager, cfg config.AuthConfig, clk clock.Clock) *Service {
	return &Service{db: db, cfg: cfg, clk: clk}
}

// IssueToken exchanges credentials for a signed JWT.
func (s *Service) IssueToken(ctx context.Context, email, password string) (string, error) {
	const instance = "/v1/auth/token"

	user, err := s.db.Users().GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", problem.New(problem.KindUnauthorized, "invalid credentials", instance)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", problem.New(problem.KindUnauthorized, "invalid credentials", instance)
	}

	roles, err := s.db.Users().RolesFor(ctx, user.ID)
	if err != nil {
		return "", err
	}
	perms, err := s.db.Users().PermissionsFor(ctx, roles)
	if err != nil {
		return "", err
	}

	tid := globalTenant
	plan, region := "", ""
	if !user.IsGlobalAdmin && user.TenantID != nil {
		tid = *user.TenantID
		tenant, err := s.db.Tenants().Get(ctx, tid)
		if err != nil {
			return "", err
		}
		if tenant != nil {
			plan = tenant.Plan
			region = tenant.Region
		}
	}

	now := s.clk.Now()
	claims := Claims{
		TenantID: tid,
		Roles:    roles,
		Perms:    perms,
		Plan:     plan,
		Region:   region,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.JWTIssuer,
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.TokenExpiresSeconds) * time.Second)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// Verify parses and validates a bearer token.
func (s *Service) Verify(tokenString string) (*Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithIssuer(s.cfg.JWTIssuer),
		jwt.WithTimeFunc(s.clk.Now),
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, problem.New(problem.KindUnauthorized, "invalid or expired token", "")
	}
	return &Principal{
		Subject:  claims.Subject,
		TenantID: claims.TenantID,
		Roles:    claims.Roles,
		Perms:    claims.Perms,
		Plan:     claims.Plan,
		Region:   claims.Region,
	}, nil
}

// Authorize enforces tenant scoping, RBAC (permission claim) and ABAC (policy
// plan/region restrictions) for one request.
func (s *Service) Authorize(ctx context.Context, p *Principal, requestTenant, permission string) error {
	if !p.GlobalAdmin() && p.TenantID != requestTenant {
		return problem.New(problem.KindForbidden, "token is not valid for this tenant", "")
	}
	if !p.HasPermission(permission) {
		return problem.Newf(problem.KindForbidden, "", "missing permission %s", permission)
	}
	if p.GlobalAdmin() {
		return nil
	}

	policy, err := s.db.Users().PolicyFor(ctx, permission)
	if err != nil {
		return err
	}
	if policy == nil {
		return nil
	}
	if policy.Effect != "allow" {
		return problem.Newf(problem.KindForbidden, "", "policy denies %s", permission)
	}
	if len(policy.AllowedPlans) > 0 && !containsString(policy.AllowedPlans, p.Plan) {
		return problem.Newf(problem.KindForbidden, "", "plan %s is not allowed for %s", p.Plan, permission)
	}
	if len(policy.AllowedRegions) > 0 && !containsString(policy.AllowedRegions, p.Region) {
		return problem.Newf(problem.KindForbidden, "", "region %s is not allowed for %s", p.Region, permission)
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
