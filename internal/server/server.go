package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resale-market/internal/config"
	"resale-market/internal/database"
	custommiddleware "resale-market/internal/middleware"
	"resale-market/internal/payment"
	"resale-market/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	infra  *Infra
}

// Router builds the HTTP surface over the given services
func Router(
	cfg *config.Config,
	logger *zap.Logger,
	db database.Service,
	rdb redis.Cmdable,
	services *Services,
	verifier *custommiddleware.TokenVerifier,
	webhooks transport.EventParser,
) http.Handler {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack(30 * time.Second)...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	// the webhook is authenticated by its signature and must never be rate limited
	transport.NewWebhookHandler(webhooks, services.Payments, logger).RegisterRoutes(router)

	limit := func(prefix string) func(http.Handler) http.Handler {
		return custommiddleware.RateLimitMiddleware(rdb, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         prefix,
		}, logger)
	}
	addressLimit := limit("rate_limit:addr")
	userLimit := limit("rate_limit:user")

	authMiddleware := func(next http.Handler) http.Handler {
		// the user limit runs after auth so it is keyed by user id
		return custommiddleware.AuthMiddleware(verifier, services.Identity, logger)(userLimit(next))
	}

	router.Group(func(r chi.Router) {
		r.Use(addressLimit)

		transport.NewProductHandler(services.Catalog, services.Social, logger).RegisterRoutes(r, authMiddleware)
		transport.NewUserHandler(services.Identity, services.Social, services.Reviews, logger).RegisterRoutes(r, authMiddleware)
		transport.NewAddressHandler(services.Addresses, logger).RegisterRoutes(r, authMiddleware)
		transport.NewOrderHandler(services.Orders, cfg.Sweep.PendingTTL, cfg.Sweep.BatchSize, logger).RegisterRoutes(r, authMiddleware)
		transport.NewReviewHandler(services.Reviews, logger).RegisterRoutes(r, authMiddleware)
	})

	return router
}

func NewServer(cfg *config.Config, logger *zap.Logger, infra *Infra) (*Server, error) {
	verifier, err := custommiddleware.NewTokenVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to configure token verification: %w", err)
	}

	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, logger)
	services := NewServices(cfg, logger, infra.DB, infra.Redis, infra.Publisher, gateway)
	handler := Router(cfg, logger, infra.DB, infra.Redis, services, verifier, payment.NewWebhookVerifier(cfg.Stripe.WebhookSecret))

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      handler,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		infra:  infra,
	}, nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases shared connections
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)

	s.logger.Info("Closing server resources")
	s.infra.Close()
	return err
}
