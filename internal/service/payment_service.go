package service

import (
	"context"
	"errors"
	"time"

	"resale-market/internal/apperror"
	"resale-market/internal/cache"
	"resale-market/internal/domain"
	"resale-market/internal/repository"

	"go.uber.org/zap"
)

const dedupConsumer = "payment"

// PaymentService applies verified gateway events to orders, at most once per
// event id.
type PaymentService interface {
	HandleEvent(ctx context.Context, event *domain.PaymentEvent) error
}

type paymentService struct {
	orders OrderService
	events repository.PaymentEventRepository
	cache  *cache.Cache
	logger *zap.Logger
}

// NewPaymentService creates a new instance of PaymentService
func NewPaymentService(orders OrderService, events repository.PaymentEventRepository, c *cache.Cache, logger *zap.Logger) PaymentService {
	return &paymentService{orders: orders, events: events, cache: c, logger: logger}
}

func (s *paymentService) HandleEvent(ctx context.Context, event *domain.PaymentEvent) error {
	log := s.logger.With(
		zap.String("payment_event_id", event.ID),
		zap.String("payment_event_type", string(event.Type)),
		zap.String("order_id", event.OrderID.String()),
	)

	key := cache.Key(cache.KeyDedup, dedupConsumer, event.ID)
	claimed, err := s.cache.Claim(ctx, key, cache.TTLDedup)
	if err != nil {
		// redis is only the fast path; the payment_events table decides
		log.Warn("Dedup cache unavailable", zap.Error(err))
		claimed = true
	}
	if !claimed {
		log.Debug("Duplicate payment event skipped")
		return nil
	}

	if err := s.apply(ctx, event, log); err != nil {
		if releaseErr := s.cache.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			log.Warn("Failed to release dedup claim", zap.Error(releaseErr))
		}
		return err
	}
	return nil
}

func (s *paymentService) apply(ctx context.Context, event *domain.PaymentEvent, log *zap.Logger) error {
	seen, err := s.events.Exists(ctx, event.ID)
	if err != nil {
		return apperror.Dependency("failed to check payment event", err)
	}
	if seen {
		log.Debug("Payment event already applied")
		return nil
	}

	switch event.Type {
	case domain.PaymentSucceeded:
		order, changed, err := s.orders.MarkPaid(ctx, event.OrderID)
		if err != nil {
			return s.unknownOrder(err, log)
		}
		if order.Amount != event.Amount {
			log.Warn("Payment amount differs from order amount",
				zap.Int64("order_amount", order.Amount),
				zap.Int64("paid_amount", event.Amount),
			)
		}
		log.Info("Payment succeeded", zap.Bool("applied", changed), zap.String("order_status", string(order.Status)))

	case domain.PaymentCanceled:
		order, changed, err := s.orders.Abandon(ctx, event.OrderID, ReasonPaymentVoided)
		if err != nil {
			return s.unknownOrder(err, log)
		}
		log.Info("Payment canceled", zap.Bool("applied", changed), zap.String("order_status", string(order.Status)))

	case domain.PaymentFailed:
		order, changed, err := s.orders.Abandon(ctx, event.OrderID, ReasonPaymentDeclined)
		if err != nil {
			return s.unknownOrder(err, log)
		}
		log.Info("Payment failed", zap.Bool("applied", changed), zap.String("order_status", string(order.Status)))
	}

	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}
	if _, err := s.events.Record(ctx, event); err != nil {
		return apperror.Dependency("failed to record payment event", err)
	}
	return nil
}

// unknownOrder acknowledges events for orders this service never created so
// the gateway stops redelivering them
func (s *paymentService) unknownOrder(err error, log *zap.Logger) error {
	if errors.Is(err, ErrOrderNotFound) {
		log.Warn("Payment event for unknown order ignored")
		return nil
	}
	return err
}
