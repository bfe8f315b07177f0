// Package ratelimit implements per-identity request throttling using a
// sliding window log. Each identity keeps an ordered log of admission
// timestamps; a request is admitted only when fewer than the configured
// limit of admissions fall inside the window ending now. The count is exact
// over any continuous window, unlike fixed-bucket approximations.
//
// Identities are metered independently. The counter store shards its keys so
// concurrent requests for different identities never contend on a shared
// lock, while admissions for a single identity are linearized by that
// counter's own mutex.
package ratelimit

import "time"

// ExemptionReason explains why a request bypassed metering.
type ExemptionReason int

const (
	// ExemptionNone means the request is subject to metering.
	ExemptionNone ExemptionReason = iota

	// ExemptionRouteExcluded means the route is statically exempt.
	ExemptionRouteExcluded

	// ExemptionAnonymousAllowed means the request carried no authenticated
	// identity. Only authenticated principals are metered by this layer.
	ExemptionAnonymousAllowed

	// ExemptionWhitelisted means the identity is on the allow-list, either
	// persistently or via a token claim.
	ExemptionWhitelisted
)

// String returns a label suitable for logs and metrics.
func (r ExemptionReason) String() string {
	switch r {
	case ExemptionRouteExcluded:
		return "route_excluded"
	case ExemptionAnonymousAllowed:
		return "anonymous_allowed"
	case ExemptionWhitelisted:
		return "whitelisted"
	default:
		return "none"
	}
}

// Quota is the limit/remaining/reset snapshot reported with every metered
// decision. ResetAt is when the oldest retained admission leaves the window,
// or now plus the window length when the log is empty.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed      bool
	Exemption    ExemptionReason
	Identity     string
	Quota        Quota
	CurrentCount int
	RetryAfter   time.Duration
}

// Exempt reports whether the request bypassed metering entirely. Exempt
// traffic consumes no quota and carries no quota snapshot.
func (d Decision) Exempt() bool {
	return d.Exemption != ExemptionNone
}
