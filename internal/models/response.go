// Package models - API response types and error handling.
// All endpoints return a consistent JSON structure; errors carry a
// machine-readable code alongside the human-readable message.
package models

import (
	"time"
)

// Standard error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 400: Input validation failed
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Authentication required or invalid
	ErrorCodeForbidden          = "FORBIDDEN"           // 403: Permission denied
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeConflict           = "CONFLICT"            // 409: Resource conflict
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED" // 429: Too many requests
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
)

// ErrorResponse provides structured error information.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse creates an error response with the current timestamp.
func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// RateLimitExceededResponse is the body returned with HTTP 429 when a
// request is rejected by the rate limiter.
type RateLimitExceededResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
	CurrentCount      int    `json:"currentCount"`
	MaxRequests       int    `json:"maxRequests"`
}

// AuthResponse is returned on successful login.
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// WhitelistEntryResponse describes one whitelist entry, including the user's
// current role resolved at read time.
type WhitelistEntryResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
	UserRole    string    `json:"user_role"`
}

// WhitelistStatusResponse reports the caller's own exemption status.
type WhitelistStatusResponse struct {
	IsWhitelisted bool `json:"isWhitelisted"`
}

// AvailableUserResponse describes a user that is not currently whitelisted.
type AvailableUserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ProbeResponse is returned by the metered probe endpoint. RequestNumber is
// the per-identity count of probe calls within this process lifetime.
type ProbeResponse struct {
	Message       string    `json:"message"`
	RequestNumber int       `json:"requestNumber"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"userId,omitempty"`
	Username      string    `json:"username,omitempty"`
	Authenticated bool      `json:"authenticated"`
}

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// ComponentHealth reports the status of one subsystem.
type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheckResponse is the /health payload.
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// NewHealthCheckResponse creates a health response with the given overall status.
func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth),
	}
}

// AddComponent records the health of a named subsystem.
func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
