package repository

import (
	"context"
	"database/sql"
	"fmt"

	"resale-market/internal/domain"

	"github.com/google/uuid"
)

// relation describes a two-column membership table that can be toggled
type relation struct {
	table   string
	subject string
	object  string
}

var (
	favoritesRelation = relation{table: "favorites", subject: "user_id", object: "product_id"}
	followsRelation   = relation{table: "follows", subject: "follower_id", object: "followee_id"}
)

// SocialRepository defines the interface for favorites and follows
type SocialRepository interface {
	ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	CountFavorites(ctx context.Context, productID uuid.UUID) (int, error)
	ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error)
	ToggleFollow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	CountFollowers(ctx context.Context, followeeID uuid.UUID) (int, error)
}

type socialRepository struct {
	db *sql.DB
}

// NewSocialRepository creates a new instance of SocialRepository
func NewSocialRepository(db *sql.DB) SocialRepository {
	return &socialRepository{db: db}
}

// toggle inserts the pair if absent, otherwise deletes it. It returns whether
// the pair exists afterwards.
func (r *socialRepository) toggle(ctx context.Context, rel relation, subject, object uuid.UUID) (bool, error) {
	var active bool

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		insert := fmt.Sprintf(
			`INSERT INTO %s (%s, %s, created_at) VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`,
			rel.table, rel.subject, rel.object,
		)
		result, err := tx.ExecContext(ctx, insert, subject, object)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", rel.table, err)
		}

		inserted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if inserted == 1 {
			active = true
			return nil
		}

		del := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, rel.table, rel.subject, rel.object)
		if _, err := tx.ExecContext(ctx, del, subject, object); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", rel.table, err)
		}
		active = false
		return nil
	})

	return active, err
}

func (r *socialRepository) count(ctx context.Context, rel relation, object uuid.UUID) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, rel.table, rel.object)
	if err := r.db.QueryRowContext(ctx, query, object).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", rel.table, err)
	}
	return n, nil
}

// ToggleFavorite flips whether the user has favorited the product
func (r *socialRepository) ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return r.toggle(ctx, favoritesRelation, userID, productID)
}

// CountFavorites returns how many users favorited the product
func (r *socialRepository) CountFavorites(ctx context.Context, productID uuid.UUID) (int, error) {
	return r.count(ctx, favoritesRelation, productID)
}

// ToggleFollow flips whether follower follows followee
func (r *socialRepository) ToggleFollow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	return r.toggle(ctx, followsRelation, followerID, followeeID)
}

// CountFollowers returns how many users follow followee
func (r *socialRepository) CountFollowers(ctx context.Context, followeeID uuid.UUID) (int, error) {
	return r.count(ctx, followsRelation, followeeID)
}

// ListFavorites returns the products a user has favorited, most recent first
func (r *socialRepository) ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count favorites: %w", err)
	}

	query := `
		SELECT p.id, p.seller_id, p.title, p.description, p.brand, p.size, p.condition, p.image_url,
		       p.price, p.currency, p.status, p.created_at, p.updated_at
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, p.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, pageOffset(page, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan favorite: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating favorites: %w", err)
	}

	return products, total, nil
}
