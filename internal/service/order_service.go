package service

import (
	"context"
	"errors"
	"time"

	"resale-market/internal/apperror"
	"resale-market/internal/domain"
	"resale-market/internal/events"
	"resale-market/internal/logger"
	"resale-market/internal/payment"
	"resale-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ReasonPaymentFailed   = "payment could not be started"
	ReasonPaymentExpired  = "payment not completed in time"
	ReasonPaymentVoided   = "payment was canceled"
	ReasonPaymentDeclined = "payment failed"
)

// CheckoutResult is what the buyer needs to complete payment client-side
type CheckoutResult struct {
	Order        *domain.Order   `json:"order"`
	Product      *domain.Product `json:"product"`
	ClientSecret string          `json:"client_secret"`
}

// OrderService drives orders through their lifecycle
type OrderService interface {
	Checkout(ctx context.Context, actor Actor, productID uuid.UUID, shippingAddressID *uuid.UUID) (*CheckoutResult, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*domain.Order, error)
	List(ctx context.Context, actor Actor, role domain.OrderRole, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error)
	Ship(ctx context.Context, orderID uuid.UUID, actor Actor, trackingNumber string) (*domain.Order, error)
	ConfirmDelivery(ctx context.Context, orderID uuid.UUID, actor Actor) (*domain.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, bool, error)
	Abandon(ctx context.Context, orderID uuid.UUID, reason string) (*domain.Order, bool, error)
	CancelStalePending(ctx context.Context, olderThan time.Duration, batchSize int) (int, error)
}

type orderService struct {
	guard     *ReservationGuard
	products  repository.ProductRepository
	orders    repository.OrderRepository
	addresses repository.AddressRepository
	catalog   CatalogService
	gateway   payment.Gateway
	publisher events.Publisher
	logger    *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	guard *ReservationGuard,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	addresses repository.AddressRepository,
	catalog CatalogService,
	gateway payment.Gateway,
	publisher events.Publisher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		guard:     guard,
		products:  products,
		orders:    orders,
		addresses: addresses,
		catalog:   catalog,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

// Checkout reserves the product and opens a payment intent for the snapshot
// price. If the gateway refuses, the order is cancelled and the product freed.
func (s *orderService) Checkout(ctx context.Context, actor Actor, productID uuid.UUID, shippingAddressID *uuid.UUID) (*CheckoutResult, error) {
	if shippingAddressID != nil {
		if _, err := s.addresses.FindByID(ctx, actor.UserID, *shippingAddressID); err != nil {
			if errors.Is(err, repository.ErrAddressNotFound) {
				return nil, ErrAddressNotFound
			}
			return nil, apperror.Dependency("failed to load address", err)
		}
	}

	order, product, err := s.guard.Reserve(ctx, productID, actor.UserID, shippingAddressID)
	if err != nil {
		return nil, err
	}
	s.catalog.Invalidate(ctx, productID)
	s.emit(ctx, order, "")

	intent, err := s.gateway.CreateCheckoutIntent(ctx, order.Amount, order.Currency, map[string]string{
		payment.MetadataOrderID: order.ID.String(),
		"product_id":            product.ID.String(),
		"buyer_id":              actor.UserID.String(),
	})
	if err != nil {
		if _, _, cancelErr := s.Abandon(context.WithoutCancel(ctx), order.ID, ReasonPaymentFailed); cancelErr != nil {
			s.logger.Error("Failed to cancel order after payment intent failure",
				zap.String("order_id", order.ID.String()),
				zap.Error(cancelErr),
			)
		}
		if errors.Is(err, payment.ErrDeclined) {
			return nil, ErrPaymentDeclined
		}
		return nil, apperror.Dependency("payment provider unavailable", err)
	}

	if err := s.orders.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		// the webhook still finds the order through intent metadata
		s.logger.Warn("Failed to store payment intent on order",
			zap.String("order_id", order.ID.String()),
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err),
		)
	} else {
		order.PaymentIntentID = &intent.ID
	}

	return &CheckoutResult{Order: order, Product: product, ClientSecret: intent.ClientSecret}, nil
}

func (s *orderService) load(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, apperror.Dependency("failed to load order", err)
	}
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != actor.UserID && order.SellerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, actor Actor, role domain.OrderRole, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	if role == "" {
		role = domain.OrderRoleBuyer
	}
	if role != domain.OrderRoleBuyer && role != domain.OrderRoleSeller {
		return nil, 0, apperror.Validation("role must be buyer or seller")
	}
	if status != nil && !status.Valid() {
		return nil, 0, apperror.Validation("unknown order status")
	}
	page, pageSize = clampPage(page, pageSize)

	orders, total, err := s.orders.List(ctx, domain.OrderFilter{
		UserID:   actor.UserID,
		Role:     role,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.Dependency("failed to list orders", err)
	}
	return orders, total, nil
}

// transition applies one CAS step and notifies both parties
func (s *orderService) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus, details domain.TransitionDetails) (*domain.Order, error) {
	if !domain.CanTransition(order.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.orders.Transition(ctx, order.ID, order.Status, to, details)
	if err != nil {
		if errors.Is(err, repository.ErrOrderStatusMismatch) {
			return nil, ErrInvalidTransition
		}
		return nil, apperror.Dependency("failed to update order", err)
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(order.Status)),
		zap.String("to", string(to)),
	)
	s.emit(ctx, updated, order.Status)

	return updated, nil
}

func (s *orderService) emit(ctx context.Context, order *domain.Order, from domain.OrderStatus) {
	payload := domain.OrderStatusChangedPayload{
		OrderID:   order.ID,
		ProductID: order.ProductID,
		From:      from,
		To:        order.Status,
	}
	for _, recipient := range []uuid.UUID{order.BuyerID, order.SellerID} {
		_ = s.publisher.Publish(ctx, domain.NewEvent(domain.EventOrderStatusChanged, recipient, payload))
	}
}

func (s *orderService) Ship(ctx context.Context, orderID uuid.UUID, actor Actor, trackingNumber string) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.UserID {
		return nil, ErrForbidden
	}

	details := domain.TransitionDetails{}
	if trackingNumber != "" {
		details.TrackingNumber = &trackingNumber
	}
	return s.transition(ctx, order, domain.OrderShipped, details)
}

// ConfirmDelivery completes the order and marks the product sold
func (s *orderService) ConfirmDelivery(ctx context.Context, orderID uuid.UUID, actor Actor) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	delivered, err := s.transition(ctx, order, domain.OrderDelivered, domain.TransitionDetails{})
	if err != nil {
		return nil, err
	}

	if _, err := s.products.CompareAndSetStatus(context.WithoutCancel(ctx), order.ProductID, domain.ProductReserved, domain.ProductSold); err != nil {
		logger.Inconsistency(s.logger, "Failed to mark delivered product as sold",
			zap.String("product_id", order.ProductID.String()),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	s.catalog.Invalidate(ctx, order.ProductID)

	return delivered, nil
}

// Cancel is allowed for the buyer or an admin. Cancelling a cancelled order
// succeeds and retries the product release.
func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	cancelled, _, err := s.cancel(ctx, order, reason)
	return cancelled, err
}

// Abandon cancels on behalf of the system (payment failures, the stale
// sweep). It only ever moves a PENDING order and reports whether it did.
func (s *orderService) Abandon(ctx context.Context, orderID uuid.UUID, reason string) (*domain.Order, bool, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.Status != domain.OrderPending && order.Status != domain.OrderCancelled {
		return order, false, nil
	}
	return s.cancel(ctx, order, reason)
}

func (s *orderService) cancel(ctx context.Context, order *domain.Order, reason string) (*domain.Order, bool, error) {
	if order.Status == domain.OrderCancelled {
		s.release(ctx, order)
		return order, false, nil
	}

	details := domain.TransitionDetails{}
	if reason != "" {
		details.CancelReason = &reason
	}

	cancelled, err := s.transition(ctx, order, domain.OrderCancelled, details)
	if err != nil {
		return nil, false, err
	}

	s.release(ctx, cancelled)
	return cancelled, true, nil
}

// release hands the product back to the catalog. A product that was removed
// or sold in the meantime is left alone and reported.
func (s *orderService) release(ctx context.Context, order *domain.Order) {
	ctx = context.WithoutCancel(ctx)
	defer s.catalog.Invalidate(ctx, order.ProductID)

	released, err := s.products.ReleaseReservation(ctx, order.ProductID)
	if err != nil {
		logger.Inconsistency(s.logger, "Failed to release reservation for cancelled order",
			zap.String("product_id", order.ProductID.String()),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	if released {
		return
	}

	product, err := s.products.FindByID(ctx, order.ProductID)
	if err != nil {
		s.logger.Warn("Failed to check product after release", zap.String("product_id", order.ProductID.String()), zap.Error(err))
		return
	}

	switch product.Status {
	case domain.ProductAvailable:
	case domain.ProductReserved:
		s.logger.Info("Product still held by another order", zap.String("product_id", product.ID.String()))
	default:
		logger.Inconsistency(s.logger, "Cancelled order references a product that is no longer reserved",
			zap.String("product_id", product.ID.String()),
			zap.String("order_id", order.ID.String()),
			zap.String("product_status", string(product.Status)),
		)
	}
}

// MarkPaid moves a PENDING order to PAID. It reports false when the order was
// already past PENDING, which makes redelivered payment events harmless.
func (s *orderService) MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, bool, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	switch order.Status {
	case domain.OrderPending:
	case domain.OrderCancelled:
		logger.Inconsistency(s.logger, "Payment succeeded for a cancelled order; refund required",
			zap.String("order_id", order.ID.String()),
			zap.String("product_id", order.ProductID.String()),
			zap.Int64("amount", order.Amount),
		)
		return order, false, nil
	default:
		return order, false, nil
	}

	paid, err := s.transition(ctx, order, domain.OrderPaid, domain.TransitionDetails{})
	if errors.Is(err, ErrInvalidTransition) {
		// lost a race with another delivery or a cancel; re-evaluate once
		current, loadErr := s.load(ctx, orderID)
		if loadErr != nil {
			return nil, false, loadErr
		}
		if current.Status == domain.OrderCancelled {
			logger.Inconsistency(s.logger, "Payment succeeded for a cancelled order; refund required",
				zap.String("order_id", current.ID.String()),
				zap.Int64("amount", current.Amount),
			)
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return paid, true, nil
}

// CancelStalePending cancels PENDING orders older than olderThan, one batch
// at a time, and returns how many it cancelled
func (s *orderService) CancelStalePending(ctx context.Context, olderThan time.Duration, batchSize int) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	cancelled := 0

	for {
		stale, err := s.orders.FindStalePending(ctx, cutoff, batchSize)
		if err != nil {
			return cancelled, apperror.Dependency("failed to find stale orders", err)
		}
		if len(stale) == 0 {
			return cancelled, nil
		}

		progressed := false
		for _, order := range stale {
			_, changed, err := s.cancel(ctx, order, ReasonPaymentExpired)
			if err != nil {
				s.logger.Warn("Failed to cancel stale order", zap.String("order_id", order.ID.String()), zap.Error(err))
				continue
			}
			if changed {
				cancelled++
				progressed = true
			}
		}

		if !progressed || len(stale) < batchSize {
			return cancelled, nil
		}
	}
}
