package service

import (
	"context"
	"errors"
	"time"

	"resale-market/internal/apperror"
	"resale-market/internal/cache"
	"resale-market/internal/domain"
	"resale-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdentityService maps identity-provider subjects to internal users
type IdentityService interface {
	Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
}

type identityService struct {
	users  repository.UserRepository
	social repository.SocialRepository
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdentityService creates a new instance of IdentityService
func NewIdentityService(
	users repository.UserRepository,
	social repository.SocialRepository,
	c *cache.Cache,
	ttl time.Duration,
	logger *zap.Logger,
) IdentityService {
	return &identityService{users: users, social: social, cache: c, ttl: ttl, logger: logger}
}

// Resolve returns the internal user for a verified subject, creating it on
// first sight. The resolved user is cached per subject.
func (s *identityService) Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error) {
	if identity.Subject == "" {
		return nil, apperror.New(apperror.KindUnauthorized, "INVALID_TOKEN", "token has no subject")
	}

	key := cache.Key(cache.KeyIdentity, identity.Subject)
	user, err := cache.GetOrLoad(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*domain.User, error) {
		now := time.Now().UTC()
		user, err := s.users.UpsertByExternalID(ctx, &domain.User{
			ID:          uuid.New(),
			ExternalID:  identity.Subject,
			Email:       identity.Email,
			DisplayName: identity.Name,
			Role:        domain.RoleUser,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return nil, err
		}
		s.logger.Debug("Identity resolved", zap.String("user_id", user.ID.String()))
		return user, nil
	})
	if err != nil {
		return nil, apperror.Dependency("failed to resolve identity", err)
	}
	return user, nil
}

func (s *identityService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Dependency("failed to load user", err)
	}
	return user, nil
}

// GetProfile is the public view: rating, review count and follower count
func (s *identityService) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	followers, err := s.social.CountFollowers(ctx, id)
	if err != nil {
		return nil, apperror.Dependency("failed to count followers", err)
	}

	user.Email = ""
	return &domain.Profile{User: *user, FollowerCount: followers}, nil
}
