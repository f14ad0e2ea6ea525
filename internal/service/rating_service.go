package service

import (
	"context"

	"resale-market/internal/apperror"
	"resale-market/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AverageRating is the arithmetic mean rounded half away from zero to one
// decimal place; no ratings gives 0
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}

	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r)))
	}

	avg, _ := sum.Div(decimal.NewFromInt(int64(len(ratings)))).Round(1).Float64()
	return avg
}

// RatingService keeps a seller's aggregate rating in step with their reviews
type RatingService interface {
	Recompute(ctx context.Context, sellerID uuid.UUID) (float64, int, error)
}

type ratingService struct {
	reviews repository.ReviewRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

// NewRatingService creates a new instance of RatingService
func NewRatingService(reviews repository.ReviewRepository, users repository.UserRepository, logger *zap.Logger) RatingService {
	return &ratingService{reviews: reviews, users: users, logger: logger}
}

// Recompute rebuilds the aggregate from every stored rating
func (s *ratingService) Recompute(ctx context.Context, sellerID uuid.UUID) (float64, int, error) {
	ratings, err := s.reviews.RatingsFor(ctx, sellerID)
	if err != nil {
		return 0, 0, apperror.Dependency("failed to load ratings", err)
	}

	avg := AverageRating(ratings)
	if err := s.users.UpdateRating(ctx, sellerID, avg, len(ratings)); err != nil {
		return 0, 0, apperror.Dependency("failed to store rating", err)
	}

	s.logger.Debug("Rating recomputed",
		zap.String("user_id", sellerID.String()),
		zap.Float64("average_rating", avg),
		zap.Int("review_count", len(ratings)),
	)
	return avg, len(ratings), nil
}
