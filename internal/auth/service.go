package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUsernameTaken is returned when registration targets an existing username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials is returned on login with a wrong username or
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Service implements registration and login on top of a storage backend.
type Service struct {
	store      storage.Storage
	tokens     *TokenManager
	bcryptCost int
	logger     *slog.Logger
}

// NewService creates an auth service.
func NewService(store storage.Storage, tokens *TokenManager, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates a new account with the user role.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(username, string(hash), models.RoleUser)
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "username", user.Username, "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and issues a token. The token's whitelist claim
// reflects the user's persistent whitelist status at issuance time.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	whitelisted, err := s.store.IsWhitelisted(ctx, user.ID)
	if err != nil {
		// Token issuance should not fail on a whitelist lookup error; the
		// persistent whitelist is still checked on every request.
		s.logger.Warn("whitelist lookup failed during login", "username", username, "error", err)
		whitelisted = false
	}

	token, err := s.tokens.Issue(user, whitelisted)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user logged in", "username", user.Username, "whitelisted", whitelisted)
	return token, user, nil
}

// SeedAdmin ensures a bootstrap admin account exists. It is a no-op when the
// username is empty or the account already exists.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := models.NewUser(username, string(hash), models.RoleAdmin)
	if err := s.store.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			s.logger.Debug("admin account already exists", "username", username)
			return nil
		}
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	s.logger.Info("admin account seeded", "username", username)
	return nil
}
