package service

import (
	"context"
	"errors"
	"strings"

	"github.com/isavelev/yatube/internal/domain"
	"github.com/isavelev/yatube/internal/repository"
	"github.com/isavelev/yatube/pkg/auth"
)

// authService implements AuthService on top of the user repository.
type authService struct {
	users repository.UserRepository
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(users repository.UserRepository) AuthService {
	return &authService{users: users}
}

// SignUp creates a user with a bcrypt-hashed password.
func (s *authService) SignUp(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password for the named user. Unknown usernames and bad
// passwords both map to ErrInvalidCredentials so callers cannot probe for
// account existence.
func (s *authService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

var _ AuthService = (*authService)(nil)
