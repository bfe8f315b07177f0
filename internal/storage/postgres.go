package storage

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS whitelisted_users (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL UNIQUE REFERENCES users(id),
	username    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_whitelisted_users_username ON whitelisted_users(username);
`

// PostgresStorage implements the Storage interface using PostgreSQL via pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and applies
// the schema on startup.
func NewPostgresStorage(config Config) (Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	pool, err := pgxpool.New(context.Background(), config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// CreateUser stores a new user, mapping unique violations to ErrDuplicate.
func (ps *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by username.
func (ps *PostgresStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return ps.scanUser(ps.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`,
		username,
	))
}

// GetUserByID retrieves a user by ID.
func (ps *PostgresStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return ps.scanUser(ps.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = $1`,
		id,
	))
}

// Users returns all registered users.
func (ps *PostgresStorage) Users(ctx context.Context) ([]*models.User, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// SaveWhitelistEntry stores or updates a whitelist entry (upsert by user ID).
func (ps *PostgresStorage) SaveWhitelistEntry(ctx context.Context, entry *models.WhitelistEntry) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO whitelisted_users (id, user_id, username, description, created_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   description = EXCLUDED.description,
		   active = EXCLUDED.active`,
		entry.ID, entry.UserID, entry.Username, entry.Description, entry.CreatedAt, entry.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save whitelist entry: %w", err)
	}
	return nil
}

// GetWhitelistEntryByUser retrieves the whitelist entry for a user, active or not.
func (ps *PostgresStorage) GetWhitelistEntryByUser(ctx context.Context, userID string) (*models.WhitelistEntry, error) {
	var entry models.WhitelistEntry
	err := ps.pool.QueryRow(ctx,
		`SELECT id, user_id, username, description, created_at, active
		 FROM whitelisted_users WHERE user_id = $1`,
		userID,
	).Scan(&entry.ID, &entry.UserID, &entry.Username, &entry.Description, &entry.CreatedAt, &entry.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get whitelist entry: %w", err)
	}
	return &entry, nil
}

// WhitelistEntries returns all active whitelist entries.
func (ps *PostgresStorage) WhitelistEntries(ctx context.Context) ([]*models.WhitelistEntry, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, user_id, username, description, created_at, active
		 FROM whitelisted_users WHERE active ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query whitelist entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.WhitelistEntry, 0)
	for rows.Next() {
		var entry models.WhitelistEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Username, &entry.Description, &entry.CreatedAt, &entry.Active); err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeactivateWhitelistEntry soft-deletes the active entry for a username.
func (ps *PostgresStorage) DeactivateWhitelistEntry(ctx context.Context, username string) error {
	tag, err := ps.pool.Exec(ctx,
		`UPDATE whitelisted_users SET active = FALSE WHERE username = $1 AND active`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate whitelist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsWhitelisted reports whether the user has an active whitelist entry.
func (ps *PostgresStorage) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	var whitelisted bool
	err := ps.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM whitelisted_users WHERE user_id = $1 AND active)`,
		userID,
	).Scan(&whitelisted)
	if err != nil {
		return false, fmt.Errorf("failed to check whitelist: %w", err)
	}
	return whitelisted, nil
}

// Ping verifies the storage backend is reachable and operational.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

func (ps *PostgresStorage) scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
