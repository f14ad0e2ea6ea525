package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"resale-market/internal/apperror"
	"resale-market/internal/cache"
	"resale-market/internal/domain"
	"resale-market/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListingInput is everything a seller provides when listing an item
type ListingInput struct {
	Title       string `validate:"required,min=3,max=140"`
	Description string `validate:"max=4000"`
	Brand       string `validate:"max=80"`
	Size        string `validate:"max=20"`
	Condition   string `validate:"required,oneof=new like_new good fair"`
	ImageURL    string `validate:"omitempty,url"`
	Price       int64  `validate:"required,gt=0"`
	Currency    string `validate:"omitempty,len=3"`
}

// CatalogService manages listings
type CatalogService interface {
	CreateListing(ctx context.Context, sellerID uuid.UUID, input ListingInput) (*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
	Remove(ctx context.Context, id uuid.UUID, actor Actor) (*domain.Product, error)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type catalogService struct {
	products        repository.ProductRepository
	cache           *cache.Cache
	ttl             time.Duration
	defaultCurrency string
	validate        *validator.Validate
	logger          *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	c *cache.Cache,
	ttl time.Duration,
	defaultCurrency string,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		products:        products,
		cache:           c,
		ttl:             ttl,
		defaultCurrency: defaultCurrency,
		validate:        validator.New(),
		logger:          logger,
	}
}

// CreateListing is the only way a product comes into existence
func (s *catalogService) CreateListing(ctx context.Context, sellerID uuid.UUID, input ListingInput) (*domain.Product, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := s.validate.Struct(input); err != nil {
		return nil, apperror.Validation("invalid listing: " + err.Error())
	}

	currency := strings.ToLower(input.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       input.Title,
		Description: input.Description,
		Brand:       input.Brand,
		Size:        input.Size,
		Condition:   input.Condition,
		ImageURL:    input.ImageURL,
		Price:       input.Price,
		Currency:    currency,
		Status:      domain.ProductAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperror.Dependency("failed to create listing", err)
	}

	s.logger.Info("Listing created",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", sellerID.String()),
		zap.Int64("price", product.Price),
	)

	return product, nil
}

func (s *catalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	key := cache.Key(cache.KeyProduct, id)

	product, err := cache.GetOrLoad(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*domain.Product, error) {
		return s.products.FindByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, apperror.Dependency("failed to load product", err)
	}
	return product, nil
}

func (s *catalogService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	filter.Page, filter.PageSize = clampPage(filter.Page, filter.PageSize)

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Dependency("failed to list products", err)
	}
	return products, total, nil
}

func (s *catalogService) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, apperror.Validation("search query is required")
	}
	page, pageSize = clampPage(page, pageSize)

	products, total, err := s.products.Search(ctx, query, page, pageSize)
	if err != nil {
		return nil, 0, apperror.Dependency("failed to search products", err)
	}
	return products, total, nil
}

// Remove soft-deletes a listing. Reserved or sold items stay put.
func (s *catalogService) Remove(ctx context.Context, id uuid.UUID, actor Actor) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, apperror.Dependency("failed to load product", err)
	}

	if product.SellerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	removed, err := s.products.CompareAndSetStatus(ctx, id, domain.ProductAvailable, domain.ProductRemoved)
	if err != nil {
		if errors.Is(err, repository.ErrProductStatusMismatch) {
			return nil, ErrNotRemovable
		}
		return nil, apperror.Dependency("failed to remove product", err)
	}

	s.Invalidate(ctx, id)
	return removed, nil
}

// Invalidate drops the cached copy after a status change
func (s *catalogService) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.Key(cache.KeyProduct, id)); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id.String()), zap.Error(err))
	}
}
