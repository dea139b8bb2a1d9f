package server

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brunopk/paycore/internal/auth"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/problem"
)

// correlationMiddleware assigns or propagates the correlation id and echoes
// it back on the response.
func (s *Server) correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = correlation.NewID()
		}
		ctx := correlation.WithCorrelationID(r.Context(), correlationID)
		w.Header().Set("X-Correlation-Id", correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		s.met.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		s.met.HTTPRequestDurationSeconds.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// protected wraps an authenticated endpoint: bearer verification, tenant
// scoping, chaos injection, rate limiting and RBAC+ABAC authorization, in
// that order.
func (s *Server) protected(permission, limitGroup string, h func(http.ResponseWriter, *http.Request, *auth.Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.principalFrom(r)
		if err != nil {
			s.writeProblem(w, r, err)
			return
		}

		tenantID := r.Header.Get("X-Tenant-Id")
		if tenantID == "" && !principal.GlobalAdmin() {
			tenantID = principal.TenantID
		}
		if tenantID == "" {
			s.writeProblem(w, r, problem.New(problem.KindInvalidArgument, "X-Tenant-Id header is required", r.URL.Path))
			return
		}

		ctx := correlation.WithTenantID(r.Context(), tenantID)
		ctx = correlation.WithSubject(ctx, principal.Subject)
		r = r.WithContext(ctx)

		if err := s.injectChaos(r, tenantID); err != nil {
			s.writeProblem(w, r, err)
			return
		}
		if err := s.checkRateLimit(w, r, tenantID, limitGroup); err != nil {
			s.writeProblem(w, r, err)
			return
		}
		if err := s.auth.Authorize(ctx, principal, tenantID, permission); err != nil {
			s.writeProblem(w, r, err)
			return
		}

		h(w, r, principal)
	}
}

func (s *Server) principalFrom(r *http.Request) (*auth.Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, problem.New(problem.KindUnauthorized, "missing bearer token", r.URL.Path)
	}
	return s.auth.Verify(strings.TrimPrefix(header, "Bearer "))
}

// injectChaos applies the tenant's fault injection config: added latency and
// a percentage of 503 responses.
func (s *Server) injectChaos(r *http.Request, tenantID string) error {
	cfg, err := s.chaos.Get(r.Context(), tenantID)
	if err != nil {
		// Chaos is best-effort; a KV outage must not take the API down.
		s.log.Warn("chaos config unavailable")
		return nil
	}
	if !cfg.Enabled {
		return nil
	}
	if cfg.LatencyMS > 0 {
		time.Sleep(time.Duration(cfg.LatencyMS) * time.Millisecond)
	}
	if cfg.FailRate > 0 && rand.Float64() < cfg.FailRate {
		return problem.New(problem.KindTransient, "chaos injection", r.URL.Path)
	}
	return nil
}

func (s *Server) checkRateLimit(w http.ResponseWriter, r *http.Request, tenantID, group string) error {
	limit := s.cfg.RateLimitReadPerMin
	if group == "write" {
		limit = s.cfg.RateLimitWritePerMin
	}
	if limit <= 0 {
		return nil
	}

	decision, err := s.limiter.Allow(r.Context(), tenantID, group, limit)
	if err != nil {
		s.log.Warn("rate limiter unavailable")
		return nil
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if decision.Allowed {
		return nil
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
	return problem.New(problem.KindRateLimited, "rate limit exceeded", r.URL.Path)
}
