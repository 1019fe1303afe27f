package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tessera/internal/apperrors"
	"tessera/internal/database"
	"tessera/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail looks up an active user for authentication.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, first_name, surname, role, is_active, registered_at
		FROM users
		WHERE email = $1 AND is_active = TRUE`,
		email,
	).Scan(
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.Surname,
		&user.Role,
		&user.IsActive,
		&user.RegisteredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID is used when rehydrating an actor from the auth cache.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, first_name, surname, role, is_active, registered_at
		FROM users
		WHERE user_id = $1`,
		id,
	).Scan(
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.Surname,
		&user.Role,
		&user.IsActive,
		&user.RegisteredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
