package storage

import (
	"context"
	"sort"
	"sync"

	"gatekeeper/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory maps.
// This provider is ideal for development and testing; data is lost on restart.
type MemoryStorage struct {
	mu              sync.RWMutex
	usersByID       map[string]*models.User
	usersByName     map[string]string                 // username -> ID
	whitelistByUser map[string]*models.WhitelistEntry // userID -> entry
}

// NewMemoryStorage creates a new memory-based storage instance.
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		usersByID:       make(map[string]*models.User),
		usersByName:     make(map[string]string),
		whitelistByUser: make(map[string]*models.WhitelistEntry),
	}, nil
}

// CreateUser stores a new user, rejecting duplicate usernames.
func (m *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usersByName[user.Username]; exists {
		return ErrDuplicate
	}

	// Store a copy to prevent external modification
	userCopy := *user
	m.usersByID[user.ID] = &userCopy
	m.usersByName[user.Username] = user.ID
	return nil
}

// GetUserByUsername retrieves a user by username.
func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.usersByName[username]
	if !exists {
		return nil, ErrNotFound
	}
	userCopy := *m.usersByID[id]
	return &userCopy, nil
}

// GetUserByID retrieves a user by ID.
func (m *MemoryStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.usersByID[id]
	if !exists {
		return nil, ErrNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

// Users returns all registered users, sorted by username.
func (m *MemoryStorage) Users(ctx context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*models.User, 0, len(m.usersByID))
	for _, user := range m.usersByID {
		userCopy := *user
		users = append(users, &userCopy)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// SaveWhitelistEntry stores or updates a whitelist entry keyed by user ID.
func (m *MemoryStorage) SaveWhitelistEntry(ctx context.Context, entry *models.WhitelistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryCopy := *entry
	m.whitelistByUser[entry.UserID] = &entryCopy
	return nil
}

// GetWhitelistEntryByUser retrieves the whitelist entry for a user, active or not.
func (m *MemoryStorage) GetWhitelistEntryByUser(ctx context.Context, userID string) (*models.WhitelistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.whitelistByUser[userID]
	if !exists {
		return nil, ErrNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

// WhitelistEntries returns all active whitelist entries, sorted by username.
func (m *MemoryStorage) WhitelistEntries(ctx context.Context) ([]*models.WhitelistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*models.WhitelistEntry, 0, len(m.whitelistByUser))
	for _, entry := range m.whitelistByUser {
		if !entry.Active {
			continue
		}
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

// DeactivateWhitelistEntry soft-deletes the active entry for a username.
func (m *MemoryStorage) DeactivateWhitelistEntry(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.whitelistByUser {
		if entry.Username == username && entry.Active {
			entry.Active = false
			return nil
		}
	}
	return ErrNotFound
}

// IsWhitelisted reports whether the user has an active whitelist entry.
func (m *MemoryStorage) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.whitelistByUser[userID]
	return exists && entry.Active, nil
}

// Ping verifies the storage backend is reachable and operational.
func (m *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

// Close clears all data.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usersByID = make(map[string]*models.User)
	m.usersByName = make(map[string]string)
	m.whitelistByUser = make(map[string]*models.WhitelistEntry)
	return nil
}
