package ratelimit

import (
	"context"
	"log/slog"

	"gatekeeper/internal/auth"
)

// WhitelistChecker answers whether an identity has an active allow-list
// entry. Implemented by the storage layer.
type WhitelistChecker interface {
	IsWhitelisted(ctx context.Context, userID string) (bool, error)
}

// Resolver decides whether a request bypasses metering. Precedence, first
// match wins:
//
//  1. The route is statically exempt.
//  2. The request carries no authenticated identity.
//  3. The identity has an active entry in the persistent allow-list.
//  4. The token carries the whitelist claim.
//
// The persistent allow-list is consulted before the claim so a removal takes
// effect immediately, without waiting for outstanding tokens to expire. A
// lookup failure falls back to the claim and is logged, never surfaced to
// the caller.
type Resolver struct {
	exemptRoutes map[string]struct{}
	whitelist    WhitelistChecker
	logger       *slog.Logger
}

// NewResolver creates an exemption resolver.
func NewResolver(exemptRoutes []string, whitelist WhitelistChecker, logger *slog.Logger) *Resolver {
	routes := make(map[string]struct{}, len(exemptRoutes))
	for _, r := range exemptRoutes {
		routes[r] = struct{}{}
	}
	return &Resolver{
		exemptRoutes: routes,
		whitelist:    whitelist,
		logger:       logger,
	}
}

// Resolve computes the exemption decision for one request. The result is
// never cached beyond the request.
func (r *Resolver) Resolve(ctx context.Context, route string, claims *auth.Claims) ExemptionReason {
	if _, ok := r.exemptRoutes[route]; ok {
		return ExemptionRouteExcluded
	}

	if claims == nil {
		return ExemptionAnonymousAllowed
	}

	active, err := r.whitelist.IsWhitelisted(ctx, claims.UserID())
	if err != nil {
		r.logger.Warn("whitelist lookup failed, falling back to token claim",
			"user_id", claims.UserID(), "error", err)
	} else if active {
		return ExemptionWhitelisted
	}

	if claims.Whitelisted {
		return ExemptionWhitelisted
	}
	return ExemptionNone
}
