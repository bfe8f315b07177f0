package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gatekeeper/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// WithRateLimiter adds the rate limiting middleware to the router. It runs
// after OptionalAuth so the limiter sees the resolved identity.
func WithRateLimiter(middleware mux.MiddlewareFunc) RouteOption {
	return func(r *mux.Router) {
		r.Use(middleware)
	}
}

// SetupRoutes configures the HTTP routes for the API.
//
// Middleware order matters: logging and recovery wrap everything, then
// OptionalAuth resolves the caller's identity, then any RouteOption
// middleware (rate limiting, tracing) runs with that identity available, and
// finally per-route guards enforce authentication and roles.
func SetupRoutes(handlers *Handlers, authMiddleware mux.MiddlewareFunc, logger *slog.Logger, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	router.Use(loggingMiddleware(logger))
	router.Use(recoveryMiddleware(logger))
	router.Use(authMiddleware)

	for _, opt := range opts {
		opt(router)
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", handlers.Register).Methods("POST")
	api.HandleFunc("/auth/login", handlers.Login).Methods("POST")

	api.HandleFunc("/probe/public", handlers.PublicProbe).Methods("GET")

	probeAPI := api.PathPrefix("/probe").Subrouter()
	probeAPI.Use(RequireAuth())
	probeAPI.HandleFunc("", handlers.Probe).Methods("GET")

	statusAPI := api.PathPrefix("/whitelist/check-status").Subrouter()
	statusAPI.Use(RequireAuth())
	statusAPI.HandleFunc("", handlers.WhitelistStatus).Methods("GET")

	adminAPI := api.PathPrefix("/whitelist").Subrouter()
	adminAPI.Use(RequireRole(models.RoleAdmin))
	adminAPI.HandleFunc("", handlers.ListWhitelist).Methods("GET")
	adminAPI.HandleFunc("/add", handlers.AddToWhitelist).Methods("POST")
	adminAPI.HandleFunc("/remove/{username}", handlers.RemoveFromWhitelist).Methods("DELETE")
	adminAPI.HandleFunc("/available-users", handlers.AvailableUsers).Methods("GET")

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Method not allowed", models.ErrorCodeBadRequest))
	})

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered", "error", err, "path", r.URL.Path)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
