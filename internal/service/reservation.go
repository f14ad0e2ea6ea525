package service

import (
	"context"
	"errors"
	"time"

	"resale-market/internal/apperror"
	"resale-market/internal/domain"
	"resale-market/internal/logger"
	"resale-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationGuard turns an AVAILABLE product into a PENDING order. The
// product status CAS, committed together with the order insert, is the only
// serialization point: of any number of concurrent buyers exactly one gets
// past it.
type ReservationGuard struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewReservationGuard(products repository.ProductRepository, logger *zap.Logger) *ReservationGuard {
	return &ReservationGuard{products: products, logger: logger}
}

// Reserve returns the new order and the product as it was at reservation time
func (g *ReservationGuard) Reserve(ctx context.Context, productID, buyerID uuid.UUID, shippingAddressID *uuid.UUID) (*domain.Order, *domain.Product, error) {
	product, err := g.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, apperror.Dependency("failed to load product", err)
	}

	if product.SellerID == buyerID {
		return nil, nil, ErrSelfPurchase
	}
	if product.Status != domain.ProductAvailable {
		return nil, nil, ErrNotAvailable
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:                uuid.New(),
		BuyerID:           buyerID,
		Status:            domain.OrderPending,
		ShippingAddressID: shippingAddressID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	snapshot, err := g.products.Reserve(ctx, productID, order)
	if err != nil {
		if errors.Is(err, repository.ErrProductStatusMismatch) || errors.Is(err, repository.ErrActiveOrderExists) {
			return nil, nil, ErrNotAvailable
		}
		// a failed commit may or may not have landed
		g.compensate(ctx, productID, order.ID)
		return nil, nil, apperror.Dependency("failed to reserve product", err)
	}

	g.logger.Info("Product reserved",
		zap.String("product_id", snapshot.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.Int64("amount", order.Amount),
	)

	return order, snapshot, nil
}

// compensate releases a hold whose transaction outcome is unknown. The
// release is a no-op when the order was committed or nothing was written.
func (g *ReservationGuard) compensate(ctx context.Context, productID, orderID uuid.UUID) {
	if _, err := g.products.ReleaseReservation(context.WithoutCancel(ctx), productID); err != nil {
		logger.Inconsistency(g.logger, "Failed to release reservation after order insert failed",
			zap.String("product_id", productID.String()),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}
}
