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
	ErrReviewExists = errors.New("order already reviewed")
)

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	RatingsFor(ctx context.Context, reviewedID uuid.UUID) ([]int, error)
	ListFor(ctx context.Context, reviewedID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error)
}

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Create inserts a review; the unique constraint on order_id rejects a second one
func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, order_id, reviewer_id, reviewed_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		review.ID,
		review.OrderID,
		review.ReviewerID,
		review.ReviewedID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_reviews_order") {
			return ErrReviewExists
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// RatingsFor returns every rating the user has received
func (r *reviewRepository) RatingsFor(ctx context.Context, reviewedID uuid.UUID) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rating FROM reviews WHERE reviewed_id = $1`, reviewedID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	ratings := []int{}
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}

	return ratings, nil
}

// ListFor pages through reviews received by a user, newest first
func (r *reviewRepository) ListFor(ctx context.Context, reviewedID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE reviewed_id = $1`, reviewedID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	query := `
		SELECT id, order_id, reviewer_id, reviewed_id, rating, comment, created_at
		FROM reviews
		WHERE reviewed_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, reviewedID, pageSize, pageOffset(page, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review := &domain.Review{}
		if err := rows.Scan(
			&review.ID,
			&review.OrderID,
			&review.ReviewerID,
			&review.ReviewedID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, total, nil
}
