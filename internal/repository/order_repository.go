package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resale-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderStatusMismatch means the order was not in the expected status
	ErrOrderStatusMismatch = errors.New("order status changed concurrently")
	// ErrActiveOrderExists is raised by the partial unique index on orders.product_id
	ErrActiveOrderExists = errors.New("product already has an active order")
)

const orderColumns = `id, buyer_id, seller_id, product_id, amount, currency, status, shipping_address_id,
	payment_intent_id, tracking_number, cancel_reason, created_at, updated_at,
	paid_at, shipped_at, delivered_at, cancelled_at`

// transitionTimestamps names the column stamped when an order enters a status
var transitionTimestamps = map[domain.OrderStatus]string{
	domain.OrderPaid:      "paid_at",
	domain.OrderShipped:   "shipped_at",
	domain.OrderDelivered: "delivered_at",
	domain.OrderCancelled: "cancelled_at",
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error)
	Transition(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, details domain.TransitionDetails) (*domain.Order, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.SellerID,
		&o.ProductID,
		&o.Amount,
		&o.Currency,
		&o.Status,
		&o.ShippingAddressID,
		&o.PaymentIntentID,
		&o.TrackingNumber,
		&o.CancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.PaidAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CancelledAt,
	)
	return o, err
}

// Create inserts a PENDING order. The amount is whatever snapshot the caller took.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	return insertOrder(ctx, r.db, order)
}

func insertOrder(ctx context.Context, db execer, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, buyer_id, seller_id, product_id, amount, currency, status, shipping_address_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := db.ExecContext(
		ctx,
		query,
		order.ID,
		order.BuyerID,
		order.SellerID,
		order.ProductID,
		order.Amount,
		order.Currency,
		order.Status,
		order.ShippingAddressID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_orders_active_product") {
			return ErrActiveOrderExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

// Transition is a compare-and-set on orders.status. The matching timestamp
// column is stamped and optional details are written in the same statement.
func (r *orderRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, details domain.TransitionDetails) (*domain.Order, error) {
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}

	query := fmt.Sprintf(`
		UPDATE orders
		SET status = $3,
		    %s = NOW(),
		    tracking_number = COALESCE($4, tracking_number),
		    cancel_reason = COALESCE($5, cancel_reason),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, transitionTimestamps[to], orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, from, to, details.TrackingNumber, details.CancelReason))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderStatusMismatch
		}
		return nil, fmt.Errorf("failed to transition order: %w", err)
	}

	return order, nil
}

// SetPaymentIntent records the gateway intent created for a PENDING order
func (r *orderRepository) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	query := `
		UPDATE orders
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.db.ExecContext(ctx, query, id, intentID)
	if err != nil {
		return fmt.Errorf("failed to set payment intent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderStatusMismatch
	}

	return nil
}

// List returns one side's orders, newest first
func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	column := "buyer_id"
	if filter.Role == domain.OrderRoleSeller {
		column = "seller_id"
	}

	whereClause := fmt.Sprintf("WHERE %s = $1", column)
	args := []interface{}{filter.UserID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		whereClause += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM orders " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, orderColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, filter.PageSize, pageOffset(filter.Page, filter.PageSize))

	orders, err := r.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// FindStalePending returns PENDING orders created before the cutoff, oldest first
func (r *orderRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	return r.queryOrders(ctx, query, createdBefore, limit)
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
