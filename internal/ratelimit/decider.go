package ratelimit

import (
	"context"
	"time"

	"gatekeeper/internal/auth"
)

// Decider orchestrates one admission: resolve exemption, consult the counter
// store, and render the verdict with its quota snapshot. Exempt traffic is
// admitted without touching a counter.
type Decider struct {
	store    *Store
	resolver *Resolver
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewDecider creates a decider over the given store and resolver.
func NewDecider(store *Store, resolver *Resolver, limit int, window time.Duration) *Decider {
	return &Decider{
		store:    store,
		resolver: resolver,
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Decide runs one admission attempt for the request described by route and
// claims. Claims are nil for anonymous requests.
func (d *Decider) Decide(ctx context.Context, route string, claims *auth.Claims) Decision {
	if reason := d.resolver.Resolve(ctx, route, claims); reason != ExemptionNone {
		return Decision{Allowed: true, Exemption: reason}
	}

	identity := claims.UserID()
	now := d.now()
	res := d.store.Admit(identity, now)

	oldest := res.oldest
	if oldest.IsZero() {
		oldest = now
	}
	quota := Quota{
		Limit:     d.limit,
		Remaining: max(0, d.limit-res.count),
		ResetAt:   oldest.Add(d.window),
	}

	decision := Decision{
		Allowed:      res.admitted,
		Identity:     identity,
		Quota:        quota,
		CurrentCount: res.count,
	}
	if !res.admitted {
		decision.RetryAfter = d.window
	}
	return decision
}
