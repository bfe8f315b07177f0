package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	allowed  int
	rejected int
	reasons  []string
}

func (f *fakeRecorder) RecordDecision(allowed bool, exemption string) {
	if allowed {
		f.allowed++
	} else {
		f.rejected++
	}
	f.reasons = append(f.reasons, exemption)
}

func newTestRouter(t *testing.T, limit int, window time.Duration, wl *fakeWhitelist, recorder DecisionRecorder) *mux.Router {
	t.Helper()
	d := newTestDecider(t, limit, window, wl)

	router := mux.NewRouter()
	router.Use(Middleware(d, discardLogger(), recorder))
	router.HandleFunc("/api/v1/probe", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

func doRequest(router *mux.Router, path string, claims *auth.Claims) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if claims != nil {
		req = req.WithContext(auth.ContextWithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_QuotaHeadersOnAdmittedResponse(t *testing.T) {
	router := newTestRouter(t, 3, time.Minute, &fakeWhitelist{}, nil)

	rec := doRequest(router, "/api/v1/probe", claimsFor("u1", false))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_RejectsWithContractBody(t *testing.T) {
	router := newTestRouter(t, 2, time.Minute, &fakeWhitelist{}, nil)
	claims := claimsFor("u1", false)

	doRequest(router, "/api/v1/probe", claims)
	doRequest(router, "/api/v1/probe", claims)

	rec := doRequest(router, "/api/v1/probe", claims)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body models.RateLimitExceededResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Too many requests", body.Error)
	assert.Equal(t, 60, body.RetryAfterSeconds)
	assert.Equal(t, 2, body.CurrentCount)
	assert.Equal(t, 2, body.MaxRequests)
}

func TestMiddleware_ExemptRouteHasNoQuotaHeaders(t *testing.T) {
	router := newTestRouter(t, 1, time.Minute, &fakeWhitelist{}, nil)
	claims := claimsFor("u1", false)

	for i := 0; i < 5; i++ {
		rec := doRequest(router, "/api/v1/auth/login", claims)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddleware_AnonymousPassesThrough(t *testing.T) {
	router := newTestRouter(t, 1, time.Minute, &fakeWhitelist{}, nil)

	for i := 0; i < 5; i++ {
		rec := doRequest(router, "/api/v1/probe", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddleware_IdentitiesMeteredIndependently(t *testing.T) {
	router := newTestRouter(t, 1, time.Minute, &fakeWhitelist{}, nil)

	rec := doRequest(router, "/api/v1/probe", claimsFor("u1", false))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(router, "/api/v1/probe", claimsFor("u1", false))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doRequest(router, "/api/v1/probe", claimsFor("u2", false))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RecordsDecisions(t *testing.T) {
	recorder := &fakeRecorder{}
	router := newTestRouter(t, 1, time.Minute, &fakeWhitelist{}, recorder)
	claims := claimsFor("u1", false)

	doRequest(router, "/api/v1/probe", claims)
	doRequest(router, "/api/v1/probe", claims)
	doRequest(router, "/api/v1/auth/login", claims)

	assert.Equal(t, 2, recorder.allowed)
	assert.Equal(t, 1, recorder.rejected)
	assert.Contains(t, recorder.reasons, "route_excluded")
}
