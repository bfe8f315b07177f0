package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"

	"github.com/gorilla/mux"
)

// OptionalAuth verifies a bearer token when one is present and attaches its
// claims to the request context. It never rejects: anonymous and
// invalid-token requests continue without claims, and it is the rate
// limiter's and the per-route guards' job to decide what that means. This
// middleware must run before the rate limiter so the limiter sees the
// resolved identity.
func OptionalAuth(tokens *auth.TokenManager, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Verify(authHeader[len(prefix):])
			if err != nil {
				logger.Debug("rejected bearer token treated as anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without verified claims in the context.
func RequireAuth() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
				writeUnauthorized(w, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose claims do not carry the given role.
// Implies RequireAuth.
func RequireRole(role string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "Authentication required")
				return
			}
			if claims.Role != role {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(models.NewErrorResponse(
					"Insufficient permissions for this operation",
					models.ErrorCodeForbidden,
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.NewErrorResponse(message, models.ErrorCodeUnauthorized))
}
