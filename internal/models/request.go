// Package models - API request types and input validation.
// Validation fails fast with clear messages and normalizes input (trimmed,
// lowercased usernames) so the rest of the service never sees raw form data.
package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 8
	maxPasswordLength = 128
)

// RegisterRequest represents a request to create a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents a credential check and token issuance request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// WhitelistAddRequest represents an admin request to exempt a user from
// rate limiting.
type WhitelistAddRequest struct {
	Username    string `json:"username"`
	Description string `json:"description,omitempty"`
}

// Validate checks and normalizes the registration input.
func (r *RegisterRequest) Validate() error {
	r.Username = normalizeUsername(r.Username)
	if err := validateUsername(r.Username); err != nil {
		return err
	}
	return validatePassword(r.Password)
}

// Validate checks and normalizes the login input.
func (r *LoginRequest) Validate() error {
	r.Username = normalizeUsername(r.Username)
	if r.Username == "" {
		return errors.New("username is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// Validate checks and normalizes the whitelist add input.
func (r *WhitelistAddRequest) Validate() error {
	r.Username = normalizeUsername(r.Username)
	r.Description = strings.TrimSpace(r.Description)
	if r.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if len(username) < minUsernameLength {
		return fmt.Errorf("username must be at least %d characters", minUsernameLength)
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("username must be at most %d characters", maxUsernameLength)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return fmt.Errorf("username contains invalid character %q", r)
		}
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return errors.New("password is required")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("password must be at most %d characters", maxPasswordLength)
	}
	return nil
}
