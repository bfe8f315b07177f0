package models

import (
	"time"

	"github.com/google/uuid"
)

// WhitelistEntry marks a user as exempt from rate limiting. Removal is a soft
// delete: Active is flipped to false and the row is retained, so re-adding a
// user reactivates the existing entry.
type WhitelistEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
}

// NewWhitelistEntry creates an active whitelist entry for the given user.
func NewWhitelistEntry(userID, username, description string) *WhitelistEntry {
	if description == "" {
		description = "Added to whitelist"
	}
	return &WhitelistEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Username:    username,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Active:      true,
	}
}
