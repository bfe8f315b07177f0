package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"

	"github.com/gorilla/mux"
)

// DecisionRecorder receives every admission verdict, for metrics.
type DecisionRecorder interface {
	RecordDecision(allowed bool, exemption string)
}

// Middleware enforces the rate limit on every request. Non-exempt responses
// carry X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset
// (Unix seconds) whether admitted or rejected; rejections return 429 with a
// machine-readable body and a Retry-After header. Exempt traffic passes
// through untouched.
func Middleware(decider *Decider, logger *slog.Logger, recorder DecisionRecorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := auth.ClaimsFromContext(r.Context())
			decision := decider.Decide(r.Context(), r.URL.Path, claims)

			if recorder != nil {
				recorder.RecordDecision(decision.Allowed, decision.Exemption.String())
			}

			if decision.Exempt() {
				next.ServeHTTP(w, r)
				return
			}

			setQuotaHeaders(w, decision.Quota)

			if !decision.Allowed {
				logger.Warn("rate limit exceeded",
					"identity", decision.Identity,
					"path", r.URL.Path,
					"current_count", decision.CurrentCount,
				)
				writeRejection(w, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setQuotaHeaders(w http.ResponseWriter, q Quota) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(q.ResetAt.Unix(), 10))
}

func writeRejection(w http.ResponseWriter, decision Decision) {
	w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(models.RateLimitExceededResponse{
		Error:             "Too many requests",
		Message:           "Rate limit exceeded. Retry after the window resets.",
		RetryAfterSeconds: int(decision.RetryAfter.Seconds()),
		CurrentCount:      decision.CurrentCount,
		MaxRequests:       decision.Quota.Limit,
	})
}
