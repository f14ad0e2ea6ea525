package service

import (
	"context"
	"errors"

	"resale-market/internal/apperror"
	"resale-market/internal/domain"
	"resale-market/internal/events"
	"resale-market/internal/repository"

	"github.com/google/uuid"
)

// SocialService handles favorites and follows. Both are toggles: calling
// twice restores the original state.
type SocialService interface {
	ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (*domain.ToggleResult, error)
	ToggleFollow(ctx context.Context, followerID, followeeID uuid.UUID) (*domain.ToggleResult, error)
	ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error)
}

type socialService struct {
	social    repository.SocialRepository
	products  repository.ProductRepository
	users     repository.UserRepository
	publisher events.Publisher
}

// NewSocialService creates a new instance of SocialService
func NewSocialService(
	social repository.SocialRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	publisher events.Publisher,
) SocialService {
	return &socialService{social: social, products: products, users: users, publisher: publisher}
}

func (s *socialService) ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (*domain.ToggleResult, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, apperror.Dependency("failed to load product", err)
	}

	active, err := s.social.ToggleFavorite(ctx, userID, productID)
	if err != nil {
		return nil, apperror.Dependency("failed to toggle favorite", err)
	}
	count, err := s.social.CountFavorites(ctx, productID)
	if err != nil {
		return nil, apperror.Dependency("failed to count favorites", err)
	}

	if active && product.SellerID != userID {
		_ = s.publisher.Publish(ctx, domain.NewEvent(domain.EventFavoriteAdded, product.SellerID, domain.FavoriteAddedPayload{
			ProductID: productID,
			UserID:    userID,
		}))
	}

	return &domain.ToggleResult{Active: active, Count: count}, nil
}

func (s *socialService) ToggleFollow(ctx context.Context, followerID, followeeID uuid.UUID) (*domain.ToggleResult, error) {
	if followerID == followeeID {
		return nil, ErrSelfFollow
	}

	if _, err := s.users.FindByID(ctx, followeeID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Dependency("failed to load user", err)
	}

	active, err := s.social.ToggleFollow(ctx, followerID, followeeID)
	if err != nil {
		return nil, apperror.Dependency("failed to toggle follow", err)
	}
	count, err := s.social.CountFollowers(ctx, followeeID)
	if err != nil {
		return nil, apperror.Dependency("failed to count followers", err)
	}

	if active {
		_ = s.publisher.Publish(ctx, domain.NewEvent(domain.EventFollowAdded, followeeID, domain.FollowAddedPayload{
			FollowerID: followerID,
		}))
	}

	return &domain.ToggleResult{Active: active, Count: count}, nil
}

func (s *socialService) ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	page, pageSize = clampPage(page, pageSize)

	products, total, err := s.social.ListFavorites(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.Dependency("failed to list favorites", err)
	}
	return products, total, nil
}
