// Package models defines the domain types shared across the gatekeeper service:
// users, whitelist entries, API request/response shapes, and configuration.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Registration always produces RoleUser; RoleAdmin accounts are
// seeded from configuration or promoted out of band.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. PasswordHash holds the bcrypt digest; the raw
// password is never stored.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser creates a user with a fresh UUID and the given role.
func NewUser(username, passwordHash, role string) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
