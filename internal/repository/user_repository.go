package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"resale-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, external_id, email, display_name, role, average_rating, review_count, created_at, updated_at`

// UserRepository defines the interface for user data access
type UserRepository interface {
	UpsertByExternalID(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateRating(ctx context.Context, id uuid.UUID, average float64, count int) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.DisplayName,
		&u.Role,
		&u.AverageRating,
		&u.ReviewCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// UpsertByExternalID creates the user on first sight of an identity-provider
// subject and otherwise refreshes the profile fields the token carries.
// The stored role is never downgraded or upgraded from a token.
func (r *userRepository) UpsertByExternalID(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, external_id, email, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE
		SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		    display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name)
		RETURNING ` + userColumns

	stored, err := scanUser(r.db.QueryRowContext(
		ctx,
		query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.DisplayName,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return stored, nil
}

// FindByID retrieves a user by ID
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// UpdateRating stores a freshly computed rating aggregate
func (r *userRepository) UpdateRating(ctx context.Context, id uuid.UUID, average float64, count int) error {
	query := `
		UPDATE users
		SET average_rating = $2, review_count = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, average, count)
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
