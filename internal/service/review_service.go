package service

import (
	"context"
	"errors"
	"time"

	"resale-market/internal/apperror"
	"resale-market/internal/domain"
	"resale-market/internal/events"
	"resale-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxCommentLength = 2000

// ReviewService lets buyers rate sellers after delivery
type ReviewService interface {
	Create(ctx context.Context, reviewerID, orderID uuid.UUID, rating int, comment string) (*domain.Review, error)
	ListFor(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error)
}

type reviewService struct {
	orders    repository.OrderRepository
	reviews   repository.ReviewRepository
	ratings   RatingService
	publisher events.Publisher
	logger    *zap.Logger
}

// NewReviewService creates a new instance of ReviewService
func NewReviewService(
	orders repository.OrderRepository,
	reviews repository.ReviewRepository,
	ratings RatingService,
	publisher events.Publisher,
	logger *zap.Logger,
) ReviewService {
	return &reviewService{
		orders:    orders,
		reviews:   reviews,
		ratings:   ratings,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *reviewService) Create(ctx context.Context, reviewerID, orderID uuid.UUID, rating int, comment string) (*domain.Review, error) {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, ErrInvalidRating
	}
	if len([]rune(comment)) > maxCommentLength {
		return nil, apperror.Validation("comment must be at most 2000 characters")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, apperror.Dependency("failed to load order", err)
	}
	if order.BuyerID != reviewerID {
		return nil, ErrForbidden
	}
	if order.Status != domain.OrderDelivered {
		return nil, ErrOrderNotDelivered
	}

	review := &domain.Review{
		ID:         uuid.New(),
		OrderID:    order.ID,
		ReviewerID: reviewerID,
		ReviewedID: order.SellerID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrReviewExists) {
			return nil, ErrAlreadyReviewed
		}
		return nil, apperror.Dependency("failed to create review", err)
	}

	if _, _, err := s.ratings.Recompute(ctx, order.SellerID); err != nil {
		// the review is stored; the next review or a manual recompute catches up
		s.logger.Error("Failed to recompute seller rating",
			zap.String("seller_id", order.SellerID.String()),
			zap.String("review_id", review.ID.String()),
			zap.Error(err),
		)
	}

	_ = s.publisher.Publish(ctx, domain.NewEvent(domain.EventReviewReceived, order.SellerID, domain.ReviewReceivedPayload{
		ReviewID: review.ID,
		OrderID:  order.ID,
		Rating:   rating,
	}))

	return review, nil
}

func (s *reviewService) ListFor(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error) {
	page, pageSize = clampPage(page, pageSize)

	reviews, total, err := s.reviews.ListFor(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.Dependency("failed to list reviews", err)
	}
	return reviews, total, nil
}
