package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"gatekeeper/internal/auth"

	"github.com/stretchr/testify/assert"
)

type fakeWhitelist struct {
	active map[string]bool
	err    error
	calls  int
}

func (f *fakeWhitelist) IsWhitelisted(_ context.Context, userID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.active[userID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func claimsFor(userID string, whitelisted bool) *auth.Claims {
	c := &auth.Claims{Username: "someone", Whitelisted: whitelisted}
	c.Subject = userID
	return c
}

func TestResolver_ExemptRouteWinsOverEverything(t *testing.T) {
	wl := &fakeWhitelist{}
	r := NewResolver([]string{"/api/v1/auth/login"}, wl, discardLogger())

	reason := r.Resolve(context.Background(), "/api/v1/auth/login", claimsFor("u1", false))
	assert.Equal(t, ExemptionRouteExcluded, reason)
	assert.Zero(t, wl.calls)
}

func TestResolver_AnonymousAllowed(t *testing.T) {
	wl := &fakeWhitelist{}
	r := NewResolver(nil, wl, discardLogger())

	reason := r.Resolve(context.Background(), "/api/v1/probe", nil)
	assert.Equal(t, ExemptionAnonymousAllowed, reason)
	assert.Zero(t, wl.calls)
}

func TestResolver_PersistentWhitelist(t *testing.T) {
	wl := &fakeWhitelist{active: map[string]bool{"u1": true}}
	r := NewResolver(nil, wl, discardLogger())

	// Persistent entry wins even when the token claim says otherwise.
	reason := r.Resolve(context.Background(), "/api/v1/probe", claimsFor("u1", false))
	assert.Equal(t, ExemptionWhitelisted, reason)
}

func TestResolver_TokenClaimFallback(t *testing.T) {
	wl := &fakeWhitelist{}
	r := NewResolver(nil, wl, discardLogger())

	reason := r.Resolve(context.Background(), "/api/v1/probe", claimsFor("u1", true))
	assert.Equal(t, ExemptionWhitelisted, reason)
	assert.Equal(t, 1, wl.calls)
}

func TestResolver_NotExempt(t *testing.T) {
	wl := &fakeWhitelist{}
	r := NewResolver(nil, wl, discardLogger())

	reason := r.Resolve(context.Background(), "/api/v1/probe", claimsFor("u1", false))
	assert.Equal(t, ExemptionNone, reason)
}

func TestResolver_LookupFailureFallsBackToClaim(t *testing.T) {
	wl := &fakeWhitelist{err: errors.New("connection refused")}
	r := NewResolver(nil, wl, discardLogger())

	reason := r.Resolve(context.Background(), "/api/v1/probe", claimsFor("u1", true))
	assert.Equal(t, ExemptionWhitelisted, reason)

	reason = r.Resolve(context.Background(), "/api/v1/probe", claimsFor("u1", false))
	assert.Equal(t, ExemptionNone, reason)
}
