// Package service provides the share server business logic,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/repository"
)

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// UserExists returns true if a user with the given login exists.
	UserExists(ctx context.Context, login string) (bool, error)
	// GetUser fetches a user by login, returning repository.ErrUserNotFound if absent.
	GetUser(ctx context.Context, login string) (*models.User, error)
	// UpsertUser creates the user or replaces its password hash.
	UpsertUser(ctx context.Context, u models.User) error
}

// AuthService checks credentials against stored bcrypt hashes.
type AuthService struct {
	repo UserRepository
}

// NewAuthService constructs a new AuthService using the provided repository.
func NewAuthService(repo UserRepository) *AuthService {
	return &AuthService{repo: repo}
}

// UserExists checks whether a user with the specified login exists.
func (s *AuthService) UserExists(ctx context.Context, login string) (bool, error) {
	return s.repo.UserExists(ctx, login)
}

// Authenticate reports whether password matches the stored hash for login.
// An unknown login is not an error, it just fails to authenticate.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (bool, error) {
	u, err := s.repo.GetUser(ctx, login)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// Register hashes password and stores the account, replacing any previous password.
func (s *AuthService) Register(ctx context.Context, login, password string) error {
	if login == "" {
		return &InvalidArgumentError{Msg: "login is required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpsertUser(ctx, models.User{Login: login, PasswordHash: hash})
}
