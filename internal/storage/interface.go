package storage

import (
	"context"

	"gatekeeper/internal/models"
)

// Storage defines the interface for user and whitelist persistence. It is
// implemented by in-memory, PostgreSQL, and SQLite backends.
//
// Whitelist semantics: removal is a soft delete (the entry stays with
// Active=false), and SaveWhitelistEntry upserts by user ID so re-adding a
// previously removed user reactivates the existing entry.
type Storage interface {
	// CreateUser stores a new user. Returns ErrDuplicate when the username
	// is already taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves a user by username. Returns ErrNotFound
	// when no such user exists.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound when no such
	// user exists.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Users returns all registered users.
	Users(ctx context.Context) ([]*models.User, error)

	// SaveWhitelistEntry stores or updates a whitelist entry, keyed by the
	// entry's user ID.
	SaveWhitelistEntry(ctx context.Context, entry *models.WhitelistEntry) error

	// GetWhitelistEntryByUser retrieves the whitelist entry for a user,
	// active or not. Returns ErrNotFound when the user was never whitelisted.
	GetWhitelistEntryByUser(ctx context.Context, userID string) (*models.WhitelistEntry, error)

	// WhitelistEntries returns all active whitelist entries.
	WhitelistEntries(ctx context.Context) ([]*models.WhitelistEntry, error)

	// DeactivateWhitelistEntry soft-deletes the active entry for a username.
	// Returns ErrNotFound when the user has no active entry.
	DeactivateWhitelistEntry(ctx context.Context, username string) error

	// IsWhitelisted reports whether the user has an active whitelist entry.
	IsWhitelisted(ctx context.Context, userID string) (bool, error)

	// Ping verifies the storage backend is reachable and operational.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources.
	Close() error
}

// Config holds configuration for storage backends.
type Config struct {
	// Type specifies the storage backend type (memory, postgres, sqlite).
	Type string `json:"type" yaml:"type"`

	// ConnectionString is used for database backends.
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`
}
