package server

import (
	"resale-market/internal/cache"
	"resale-market/internal/config"
	"resale-market/internal/database"
	"resale-market/internal/events"
	"resale-market/internal/payment"
	"resale-market/internal/repository"
	"resale-market/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services is the assembled application layer
type Services struct {
	Identity  service.IdentityService
	Catalog   service.CatalogService
	Orders    service.OrderService
	Payments  service.PaymentService
	Reviews   service.ReviewService
	Social    service.SocialService
	Addresses service.AddressService
}

// NewServices wires repositories and the cache into the services
func NewServices(
	cfg *config.Config,
	logger *zap.Logger,
	db database.Service,
	rdb redis.Cmdable,
	publisher events.Publisher,
	gateway payment.Gateway,
) *Services {
	sqlDB := db.DB()
	c := cache.New(rdb)

	products := repository.NewProductRepository(sqlDB)
	orders := repository.NewOrderRepository(sqlDB)
	addresses := repository.NewAddressRepository(sqlDB)
	users := repository.NewUserRepository(sqlDB)
	reviews := repository.NewReviewRepository(sqlDB)
	social := repository.NewSocialRepository(sqlDB)
	paymentEvents := repository.NewPaymentEventRepository(sqlDB)

	catalog := service.NewCatalogService(products, c, cfg.Cache.ProductTTL, cfg.Stripe.Currency, logger)
	guard := service.NewReservationGuard(products, logger)
	orderService := service.NewOrderService(guard, products, orders, addresses, catalog, gateway, publisher, logger)
	ratings := service.NewRatingService(reviews, users, logger)

	return &Services{
		Identity:  service.NewIdentityService(users, social, c, cfg.Cache.IdentityTTL, logger),
		Catalog:   catalog,
		Orders:    orderService,
		Payments:  service.NewPaymentService(orderService, paymentEvents, c, logger),
		Reviews:   service.NewReviewService(orders, reviews, ratings, publisher, logger),
		Social:    service.NewSocialService(social, products, users, publisher),
		Addresses: service.NewAddressService(addresses),
	}
}
