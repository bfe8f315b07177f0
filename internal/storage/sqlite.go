package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatekeeper/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS whitelisted_users (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL UNIQUE REFERENCES users(id),
	username    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_whitelisted_users_username ON whitelisted_users(username);
`

// SQLiteStorage implements the Storage interface using SQLite. It is suited
// to single-node deployments that need persistence without a database server.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance and applies the
// schema on startup.
func NewSQLiteStorage(config Config) (Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// CreateUser stores a new user, mapping unique violations to ErrDuplicate.
func (ss *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.Role, user.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by username.
func (ss *SQLiteStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return ss.scanUser(ss.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`,
		username,
	))
}

// GetUserByID retrieves a user by ID.
func (ss *SQLiteStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return ss.scanUser(ss.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?`,
		id,
	))
}

// Users returns all registered users.
func (ss *SQLiteStorage) Users(ctx context.Context) ([]*models.User, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		var user models.User
		var createdAt string
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// SaveWhitelistEntry stores or updates a whitelist entry (upsert by user ID).
func (ss *SQLiteStorage) SaveWhitelistEntry(ctx context.Context, entry *models.WhitelistEntry) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO whitelisted_users (id, user_id, username, description, created_at, active)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   description = excluded.description,
		   active = excluded.active`,
		entry.ID, entry.UserID, entry.Username, entry.Description,
		entry.CreatedAt.Format(time.RFC3339Nano), boolToInt(entry.Active),
	)
	if err != nil {
		return fmt.Errorf("failed to save whitelist entry: %w", err)
	}
	return nil
}

// GetWhitelistEntryByUser retrieves the whitelist entry for a user, active or not.
func (ss *SQLiteStorage) GetWhitelistEntryByUser(ctx context.Context, userID string) (*models.WhitelistEntry, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, user_id, username, description, created_at, active
		 FROM whitelisted_users WHERE user_id = ?`,
		userID,
	)
	entry, err := scanWhitelistEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get whitelist entry: %w", err)
	}
	return entry, nil
}

// WhitelistEntries returns all active whitelist entries.
func (ss *SQLiteStorage) WhitelistEntries(ctx context.Context) ([]*models.WhitelistEntry, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, user_id, username, description, created_at, active
		 FROM whitelisted_users WHERE active = 1 ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query whitelist entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.WhitelistEntry, 0)
	for rows.Next() {
		entry, err := scanWhitelistEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeactivateWhitelistEntry soft-deletes the active entry for a username.
func (ss *SQLiteStorage) DeactivateWhitelistEntry(ctx context.Context, username string) error {
	result, err := ss.db.ExecContext(ctx,
		`UPDATE whitelisted_users SET active = 0 WHERE username = ? AND active = 1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate whitelist entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsWhitelisted reports whether the user has an active whitelist entry.
func (ss *SQLiteStorage) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	var whitelisted bool
	err := ss.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM whitelisted_users WHERE user_id = ? AND active = 1)`,
		userID,
	).Scan(&whitelisted)
	if err != nil {
		return false, fmt.Errorf("failed to check whitelist: %w", err)
	}
	return whitelisted, nil
}

// Ping verifies the storage backend is reachable and operational.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

func (ss *SQLiteStorage) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var createdAt string
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &user, nil
}

func scanWhitelistEntry(scan func(dest ...any) error) (*models.WhitelistEntry, error) {
	var entry models.WhitelistEntry
	var createdAt string
	var active int
	if err := scan(&entry.ID, &entry.UserID, &entry.Username, &entry.Description, &createdAt, &active); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	entry.CreatedAt = parsed
	entry.Active = active != 0
	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
