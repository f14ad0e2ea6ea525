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
	ErrAddressNotFound = errors.New("address not found")
)

const addressColumns = `id, user_id, type, full_name, line1, line2, city, state, postal_code, country, phone, is_default, created_at, updated_at`

// AddressRepository defines the interface for address data access.
// Every method is scoped by owner so one user can never touch another's rows.
type AddressRepository interface {
	Create(ctx context.Context, address *domain.Address) error
	Update(ctx context.Context, address *domain.Address) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
}

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository creates a new instance of AddressRepository
func NewAddressRepository(db *sql.DB) AddressRepository {
	return &addressRepository{db: db}
}

func scanAddress(row rowScanner) (*domain.Address, error) {
	a := &domain.Address{}
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Type,
		&a.FullName,
		&a.Line1,
		&a.Line2,
		&a.City,
		&a.State,
		&a.PostalCode,
		&a.Country,
		&a.Phone,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// clearDefault unsets any default of the same type inside tx
func clearDefault(ctx context.Context, tx *sql.Tx, userID uuid.UUID, addressType domain.AddressType, except uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE addresses
		SET is_default = FALSE
		WHERE user_id = $1 AND type = $2 AND is_default AND id <> $3
	`, userID, addressType, except)
	if err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	return nil
}

// Create inserts an address. A new default replaces the previous one atomically.
func (r *addressRepository) Create(ctx context.Context, address *domain.Address) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if address.IsDefault {
			if err := clearDefault(ctx, tx, address.UserID, address.Type, address.ID); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO addresses (`+addressColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			address.ID,
			address.UserID,
			address.Type,
			address.FullName,
			address.Line1,
			address.Line2,
			address.City,
			address.State,
			address.PostalCode,
			address.Country,
			address.Phone,
			address.IsDefault,
			address.CreatedAt,
			address.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		return nil
	})
}

// Update overwrites the editable fields of an owned address
func (r *addressRepository) Update(ctx context.Context, address *domain.Address) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if address.IsDefault {
			if err := clearDefault(ctx, tx, address.UserID, address.Type, address.ID); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE addresses
			SET type = $3, full_name = $4, line1 = $5, line2 = $6, city = $7, state = $8,
			    postal_code = $9, country = $10, phone = $11, is_default = $12
			WHERE id = $1 AND user_id = $2
		`,
			address.ID,
			address.UserID,
			address.Type,
			address.FullName,
			address.Line1,
			address.Line2,
			address.City,
			address.State,
			address.PostalCode,
			address.Country,
			address.Phone,
			address.IsDefault,
		)
		if err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrAddressNotFound
		}
		return nil
	})
}

// Delete removes an owned address
func (r *addressRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAddressNotFound
	}

	return nil
}

// FindByID retrieves an owned address
func (r *addressRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

	address, err := scanAddress(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to find address by ID: %w", err)
	}

	return address, nil
}

// ListByUser returns a user's addresses, defaults first
func (r *addressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	query := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []*domain.Address{}
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}

// SetDefault makes an owned address the default of its type
func (r *addressRepository) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	var updated *domain.Address

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var addressType domain.AddressType
		err := tx.QueryRowContext(ctx,
			`SELECT type FROM addresses WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID,
		).Scan(&addressType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAddressNotFound
			}
			return fmt.Errorf("failed to lock address: %w", err)
		}

		if err := clearDefault(ctx, tx, userID, addressType, id); err != nil {
			return err
		}

		updated, err = scanAddress(tx.QueryRowContext(ctx, `
			UPDATE addresses SET is_default = TRUE
			WHERE id = $1 AND user_id = $2
			RETURNING `+addressColumns, id, userID))
		if err != nil {
			return fmt.Errorf("failed to set default address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
