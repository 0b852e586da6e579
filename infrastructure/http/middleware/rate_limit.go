package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	domainerr "github.com/expensetrack/expensetrack/domain/error"
	"github.com/expensetrack/expensetrack/infrastructure/http/response"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

// RateLimitPolicy limits requests per client IP for paths ending in Suffix.
type RateLimitPolicy struct {
	Name          string
	Suffix        string
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultRateLimitPolicies covers the unauthenticated auth endpoints. The
// login policy is looser than the per-account throttle in the use case.
func DefaultRateLimitPolicies() []RateLimitPolicy {
	return []RateLimitPolicy{
		{Name: "login", Suffix: "/login", Limit: 20, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute},
		{Name: "refresh", Suffix: "/refresh", Limit: 60, Window: time.Hour, BlockDuration: 15 * time.Minute},
		{Name: "forgot", Suffix: "/forgot-password", Limit: 5, Window: time.Hour, BlockDuration: time.Hour},
		{Name: "reset", Suffix: "/reset-password", Limit: 10, Window: time.Hour, BlockDuration: time.Hour},
		{Name: "register", Suffix: "/register", Limit: 10, Window: time.Hour, BlockDuration: time.Hour},
	}
}

type RateLimitMiddleware struct {
	rateLimitService inbound.RateLimitService
	policies         []RateLimitPolicy
	logger           logger.Logger
}

func NewRateLimitMiddleware(rateLimitService inbound.RateLimitService, policies []RateLimitPolicy, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		policies:         policies,
		logger:           log,
	}
}

func (m *RateLimitMiddleware) policyFor(path string) (RateLimitPolicy, bool) {
	for _, p := range m.policies {
		if strings.HasSuffix(path, p.Suffix) {
			return p, true
		}
	}
	return RateLimitPolicy{}, false
}

// RateLimit counts every request on a limited path. Limiter errors let the
// request through.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitService == nil || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		policy, ok := m.policyFor(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := inbound.ClientIP(ctx)
		key := policy.Name + ":ip:" + clientIP

		isBlocked, err := m.rateLimitService.IsBlocked(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		}
		if isBlocked {
			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_blocked", "MEDIUM", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"userAgent": r.UserAgent(),
			})
			m.reject(w, policy)
			return
		}

		allowed, err := m.rateLimitService.CheckLimit(ctx, key, policy.Limit, policy.Window)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{"key": key})
			allowed = true
		}
		if !allowed {
			if err := m.rateLimitService.Block(ctx, key, policy.BlockDuration, "rate limit exceeded"); err != nil {
				m.logger.Error(ctx, "Failed to block client", err, map[string]interface{}{"key": key})
			}
			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_exceeded", "HIGH", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"userAgent": r.UserAgent(),
			})
			m.reject(w, policy)
			return
		}

		if err := m.rateLimitService.Increment(ctx, key, policy.Window); err != nil {
			m.logger.Error(ctx, "Failed to count request", err, map[string]interface{}{"key": key})
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter, policy RateLimitPolicy) {
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.BlockDuration.Seconds())))
	response.AppError(w, domainerr.ErrRateLimitExceeded(policy.Limit, policy.Window.String()))
}
