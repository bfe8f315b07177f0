// Package auth provides account registration, credential verification, and
// JWT issuance. Tokens carry the user's role and a whitelist flag captured at
// issuance time, so downstream middleware can make exemption decisions
// without a storage round trip.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload for issued tokens. The registered Subject claim
// holds the user ID. Whitelisted is a snapshot taken at token issuance; the
// persistent whitelist remains authoritative and is consulted first.
type Claims struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	Whitelisted bool   `json:"wl"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

type contextKey struct{}

var claimsKey contextKey

// ContextWithClaims attaches verified claims to the request context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves verified claims from the context. The second
// return value is false for anonymous requests.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
