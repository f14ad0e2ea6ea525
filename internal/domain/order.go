package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is a position in the order lifecycle
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderPaid: true, OrderCancelled: true},
	OrderPaid:      {OrderShipped: true, OrderCancelled: true},
	OrderShipped:   {OrderDelivered: true},
	OrderDelivered: {},
	OrderCancelled: {},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// PredecessorsOf returns every status from which to is reachable in one step
func PredecessorsOf(to OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, from := range []OrderStatus{OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled} {
		if validNext[from][to] {
			out = append(out, from)
		}
	}
	return out
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// IsActive reports whether the order still holds its product
func (s OrderStatus) IsActive() bool {
	return s == OrderPending || s == OrderPaid || s == OrderShipped
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Order binds a buyer to one product at a snapshotted amount
type Order struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	BuyerID           uuid.UUID   `json:"buyer_id" db:"buyer_id"`
	SellerID          uuid.UUID   `json:"seller_id" db:"seller_id"`
	ProductID         uuid.UUID   `json:"product_id" db:"product_id"`
	Amount            int64       `json:"amount" db:"amount"`
	Currency          string      `json:"currency" db:"currency"`
	Status            OrderStatus `json:"status" db:"status"`
	ShippingAddressID *uuid.UUID  `json:"shipping_address_id,omitempty" db:"shipping_address_id"`
	PaymentIntentID   *string     `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	TrackingNumber    *string     `json:"tracking_number,omitempty" db:"tracking_number"`
	CancelReason      *string     `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
	PaidAt            *time.Time  `json:"paid_at,omitempty" db:"paid_at"`
	ShippedAt         *time.Time  `json:"shipped_at,omitempty" db:"shipped_at"`
	DeliveredAt       *time.Time  `json:"delivered_at,omitempty" db:"delivered_at"`
	CancelledAt       *time.Time  `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// TransitionDetails carries optional columns written alongside a status change
type TransitionDetails struct {
	TrackingNumber *string
	CancelReason   *string
}

// OrderRole selects which side of an order a listing is for
type OrderRole string

const (
	OrderRoleBuyer  OrderRole = "buyer"
	OrderRoleSeller OrderRole = "seller"
)

// OrderFilter narrows an order listing
type OrderFilter struct {
	UserID   uuid.UUID
	Role     OrderRole
	Status   *OrderStatus
	Page     int
	PageSize int
}
