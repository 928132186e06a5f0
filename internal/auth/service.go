package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codeclash/codeclash-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when name/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an already-taken name.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidName is returned when a display name doesn't meet constraints.
	ErrInvalidName = errors.New("invalid display name")
	// ErrInvalidPassword is returned when a password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token
// plus the created user.
func (s *Service) Register(ctx context.Context, displayName, password string) (string, *store.User, error) {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) < 3 || len(displayName) > 32 {
		return "", nil, ErrInvalidName
	}
	if len(password) < 6 {
		return "", nil, ErrInvalidPassword
	}

	if existing, err := s.store.GetUserByName(ctx, displayName); err == nil && existing != nil {
		return "", nil, ErrUserExists
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, displayName, hashed)
	if err != nil {
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.DisplayName, false)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// Login validates credentials and returns a JWT token plus the user.
func (s *Service) Login(ctx context.Context, displayName, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByName(ctx, strings.TrimSpace(displayName))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.DisplayName, false)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// CreateGuest creates a temporary guest user and returns a JWT token plus the
// user. An empty display name gets a generated one.
func (s *Service) CreateGuest(ctx context.Context, displayName string) (string, *store.User, error) {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > 32 {
		return "", nil, ErrInvalidName
	}

	user, err := s.store.CreateGuestUser(ctx, displayName)
	if err != nil {
		return "", nil, fmt.Errorf("create guest user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.DisplayName, true)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
