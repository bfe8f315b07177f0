package storage

import (
	"context"
	"testing"

	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T, username string) *models.User {
	t.Helper()
	return models.NewUser(username, "hash", models.RoleUser)
}

func TestMemoryStorage_CreateUser(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, "alice")

	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice", got.Username)

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestMemoryStorage_CreateUser_Duplicate(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, newTestUser(t, "alice")))

	err = store.CreateUser(ctx, newTestUser(t, "alice"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStorage_GetUser_NotFound(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetUserByID(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_Users_Sorted(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, store.CreateUser(ctx, newTestUser(t, name)))
	}

	users, err := store.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.Equal(t, "carol", users[2].Username)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, newTestUser(t, "alice")))

	got, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	got.Role = models.RoleAdmin

	again, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, again.Role)
}

func TestMemoryStorage_WhitelistLifecycle(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, "alice")
	require.NoError(t, store.CreateUser(ctx, user))

	whitelisted, err := store.IsWhitelisted(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, whitelisted)

	entry := models.NewWhitelistEntry(user.ID, user.Username, "trusted tester")
	require.NoError(t, store.SaveWhitelistEntry(ctx, entry))

	whitelisted, err = store.IsWhitelisted(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, whitelisted)

	got, err := store.GetWhitelistEntryByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "trusted tester", got.Description)
	assert.True(t, got.Active)

	entries, err := store.WhitelistEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Username)

	require.NoError(t, store.DeactivateWhitelistEntry(ctx, "alice"))

	whitelisted, err = store.IsWhitelisted(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, whitelisted)

	// The entry survives as a soft-deleted record.
	got, err = store.GetWhitelistEntryByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	entries, err = store.WhitelistEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStorage_DeactivateWhitelistEntry_NotFound(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	err = store.DeactivateWhitelistEntry(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_DeactivateWhitelistEntry_AlreadyInactive(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, "alice")
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.SaveWhitelistEntry(ctx, models.NewWhitelistEntry(user.ID, user.Username, "")))
	require.NoError(t, store.DeactivateWhitelistEntry(ctx, "alice"))

	err = store.DeactivateWhitelistEntry(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_SaveWhitelistEntry_Reactivate(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, "alice")
	require.NoError(t, store.CreateUser(ctx, user))

	first := models.NewWhitelistEntry(user.ID, user.Username, "first pass")
	require.NoError(t, store.SaveWhitelistEntry(ctx, first))
	require.NoError(t, store.DeactivateWhitelistEntry(ctx, "alice"))

	second := models.NewWhitelistEntry(user.ID, user.Username, "second pass")
	require.NoError(t, store.SaveWhitelistEntry(ctx, second))

	whitelisted, err := store.IsWhitelisted(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, whitelisted)

	got, err := store.GetWhitelistEntryByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "second pass", got.Description)
}

func TestMemoryStorage_Ping(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}
