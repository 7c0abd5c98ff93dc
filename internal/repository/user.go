// Package repository provides share and user stores backed by PostgreSQL or
// by process memory.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
)

// ErrUserNotFound is returned when a login has no account.
var ErrUserNotFound = errors.New("user not found")

// PostgresUserRepository stores accounts in the users table.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// UserExists checks whether a user with the specified login exists in the database.
func (r *PostgresUserRepository) UserExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)`,
		login,
	).Scan(&exists)
	return exists, err
}

// GetUser loads an account. ErrUserNotFound is returned for unknown logins.
func (r *PostgresUserRepository) GetUser(ctx context.Context, login string) (*models.User, error) {
	u := models.User{Login: login}
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT password_hash FROM users WHERE login = $1`,
		login,
	).Scan(&u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return &u, nil
}

// UpsertUser creates the account or replaces its password hash.
func (r *PostgresUserRepository) UpsertUser(ctx context.Context, u models.User) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2)
		 ON CONFLICT (login) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
		u.Login, u.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("UpsertUser: %w", err)
	}
	return nil
}
