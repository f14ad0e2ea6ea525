package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderStatusChanged = "order.status_changed"
	EventFavoriteAdded      = "favorite.added"
	EventFollowAdded        = "follow.added"
	EventReviewReceived     = "review.received"
)

// Event is a change notification addressed to one user
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent stamps a fresh event for recipient
func NewEvent(eventType string, recipient uuid.UUID, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     recipient,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type OrderStatusChangedPayload struct {
	OrderID   uuid.UUID   `json:"order_id"`
	ProductID uuid.UUID   `json:"product_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
}

type FavoriteAddedPayload struct {
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
}

type FollowAddedPayload struct {
	FollowerID uuid.UUID `json:"follower_id"`
}

type ReviewReceivedPayload struct {
	ReviewID uuid.UUID `json:"review_id"`
	OrderID  uuid.UUID `json:"order_id"`
	Rating   int       `json:"rating"`
}
