package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	domainerr "github.com/expensetrack/expensetrack/domain/error"
	"github.com/expensetrack/expensetrack/infrastructure/http/response"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

type AuthMiddleware struct {
	authUseCase inbound.AuthUseCase
	logger      logger.Logger
}

func NewAuthMiddleware(authUseCase inbound.AuthUseCase, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authUseCase: authUseCase,
		logger:      log,
	}
}

// Authenticate attaches an identity to the request when it carries a valid
// bearer token. Missing, malformed, expired or badly signed tokens pass
// through unauthenticated. A revoked token is rejected here, and a failing
// revocation store is reported as unavailable.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.authUseCase.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, domainerr.ErrTokenRevoked("")):
				response.AppError(w, err)
				return
			case domainerr.GetHTTPStatusCode(err) >= http.StatusInternalServerError:
				m.logger.Error(r.Context(), "Authentication backend failure", err, map[string]interface{}{
					"path": r.URL.Path,
				})
				response.AppError(w, err)
				return
			}
			m.logger.Debug(r.Context(), "Ignoring unusable bearer token", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			next.ServeHTTP(w, r)
			return
		}

		ctx := inbound.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that reached it without an identity.
func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := inbound.IdentityFrom(r.Context()); !ok {
			response.AppError(w, domainerr.ErrAuthenticationRequired())
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireRole allows only identities carrying one of roles.
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToUpper(role)] = struct{}{}
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := inbound.IdentityFrom(r.Context())
			if _, ok := allowed[strings.ToUpper(identity.Role)]; !ok {
				logger.LogSecurityEvent(r.Context(), m.logger, "forbidden_role", "MEDIUM", map[string]interface{}{
					"user_id": identity.UserID,
					"role":    identity.Role,
					"path":    r.URL.Path,
				})
				response.AppError(w, domainerr.ErrForbidden(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
