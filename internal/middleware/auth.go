package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/services"
	"tenantchat/internal/httputil"
)

// Authenticate resolves the bearer token into a principal on every request.
// No Authorization header means an anonymous principal; a header that fails
// to resolve is rejected with 401 rather than downgraded to anonymous.
func Authenticate(resolver services.IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrUnauthorized):
					httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				case errors.Is(err, domain.ErrUnavailable):
					w.Header().Set("Retry-After", "1")
					httputil.RespondError(w, http.StatusServiceUnavailable, "identity lookup unavailable")
				default:
					logger.Error("identity resolution failed", "path", r.URL.Path, "error", err)
					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}

			next.ServeHTTP(w, httputil.WithPrincipal(r, *principal))
		})
	}
}

// RequireUser rejects anonymous requests with 401. Routes that serve public
// conversations are registered without it.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if httputil.GetPrincipal(r).IsAnonymous() {
			httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}
