package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *mux.Router
	store  storage.Storage
	tokens *auth.TokenManager
	svc    *auth.Service
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()

	store, err := storage.NewMemoryStorage(storage.Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenManager(models.SecurityConfig{
		JWTSecret:   "a-test-secret-that-is-at-least-32-bytes",
		JWTIssuer:   "gatekeeper",
		JWTAudience: "gatekeeper-clients",
		TokenTTL:    time.Hour,
	})
	svc := auth.NewService(store, tokens, 4, logger)
	handlers := NewHandlers(store, svc, logger)

	opts := []RouteOption{}
	if rateLimit > 0 {
		rlStore := ratelimit.NewStore(rateLimit, time.Minute, 0, logger)
		t.Cleanup(rlStore.Close)
		resolver := ratelimit.NewResolver(models.DefaultExemptRoutes(), store, logger)
		decider := ratelimit.NewDecider(rlStore, resolver, rateLimit, time.Minute)
		opts = append(opts, WithRateLimiter(ratelimit.Middleware(decider, logger, nil)))
	}

	router := SetupRoutes(handlers, OptionalAuth(tokens, logger), logger, opts...)
	return &testEnv{router: router, store: store, tokens: tokens, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerAndLogin(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	require.NoError(t, e.svc.SeedAdmin(context.Background(), "admin", "adminpassword"))

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Username: "admin",
		Password: "adminpassword",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, models.RoleAdmin, resp.Role)
	return resp.Token
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "ab",
		Password: "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "alice",
		Password: "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t, 0)
	env.registerAndLogin(t, "alice", "password123")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "alice",
		Password: "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t, 0)
	env.registerAndLogin(t, "alice", "password123")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProbe_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/probe", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProbe_CountsPerIdentity(t *testing.T) {
	env := newTestEnv(t, 0)
	aliceToken := env.registerAndLogin(t, "alice", "password123")
	bobToken := env.registerAndLogin(t, "bob", "password123")

	for want := 1; want <= 3; want++ {
		rec := env.do(t, http.MethodGet, "/api/v1/probe", aliceToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.ProbeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.RequestNumber)
		assert.True(t, resp.Authenticated)
		assert.Equal(t, "alice", resp.Username)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/probe", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RequestNumber)
}

func TestPublicProbe_NoAuthNeeded(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/probe/public", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidToken_TreatedAsAnonymous(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/probe", "not-a-valid-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/probe/public", "not-a-valid-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusHealthy, resp.Status)
	assert.Contains(t, resp.Components, "storage")
}

func TestWhitelist_AdminOnly(t *testing.T) {
	env := newTestEnv(t, 0)
	userToken := env.registerAndLogin(t, "alice", "password123")

	rec := env.do(t, http.MethodGet, "/api/v1/whitelist", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/whitelist", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWhitelist_Lifecycle(t *testing.T) {
	env := newTestEnv(t, 0)
	adminToken := env.adminToken(t)
	aliceToken := env.registerAndLogin(t, "alice", "password123")

	// Alice starts off the list.
	rec := env.do(t, http.MethodGet, "/api/v1/whitelist/check-status", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.WhitelistStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsWhitelisted)

	// Admin sees alice among available users.
	rec = env.do(t, http.MethodGet, "/api/v1/whitelist/available-users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var available []models.AvailableUserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &available))
	usernames := make([]string, 0, len(available))
	for _, u := range available {
		usernames = append(usernames, u.Username)
	}
	assert.Contains(t, usernames, "alice")

	// Add alice.
	rec = env.do(t, http.MethodPost, "/api/v1/whitelist/add", adminToken, models.WhitelistAddRequest{
		Username:    "alice",
		Description: "load testing",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Adding again conflicts.
	rec = env.do(t, http.MethodPost, "/api/v1/whitelist/add", adminToken, models.WhitelistAddRequest{
		Username: "alice",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The list shows her with her role.
	rec = env.do(t, http.MethodGet, "/api/v1/whitelist", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.WhitelistEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, models.RoleUser, entries[0].UserRole)
	assert.Equal(t, "load testing", entries[0].Description)

	// Her status flips without a new token.
	rec = env.do(t, http.MethodGet, "/api/v1/whitelist/check-status", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.IsWhitelisted)

	// Remove her.
	rec = env.do(t, http.MethodDelete, "/api/v1/whitelist/remove/alice", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/whitelist/remove/alice", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/whitelist/check-status", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsWhitelisted)
}

func TestWhitelistAdd_UnknownUser(t *testing.T) {
	env := newTestEnv(t, 0)
	adminToken := env.adminToken(t)

	rec := env.do(t, http.MethodPost, "/api/v1/whitelist/add", adminToken, models.WhitelistAddRequest{
		Username: "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit_EnforcedOnProbe(t *testing.T) {
	env := newTestEnv(t, 3)
	token := env.registerAndLogin(t, "alice", "password123")

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/probe", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/probe", token, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body models.RateLimitExceededResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.CurrentCount)
	assert.Equal(t, 3, body.MaxRequests)
	assert.Equal(t, 60, body.RetryAfterSeconds)
}

func TestRateLimit_LoginRouteExempt(t *testing.T) {
	env := newTestEnv(t, 1)
	env.registerAndLogin(t, "alice", "password123")

	// Repeated logins never hit the limiter.
	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
			Username: "alice",
			Password: "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_WhitelistedUserExempt(t *testing.T) {
	env := newTestEnv(t, 1)
	adminToken := env.adminToken(t)
	token := env.registerAndLogin(t, "alice", "password123")

	rec := env.do(t, http.MethodPost, "/api/v1/whitelist/add", adminToken, models.WhitelistAddRequest{
		Username: "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 10; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/probe", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPut, "/api/v1/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
