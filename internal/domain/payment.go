package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	PaymentSucceeded PaymentEventType = "payment_intent.succeeded"
	PaymentFailed    PaymentEventType = "payment_intent.payment_failed"
	PaymentCanceled  PaymentEventType = "payment_intent.canceled"
)

// PaymentEvent is a verified gateway notification about one order's payment
type PaymentEvent struct {
	ID              string           `json:"id" db:"event_id"`
	Type            PaymentEventType `json:"type" db:"type"`
	OrderID         uuid.UUID        `json:"order_id" db:"order_id"`
	PaymentIntentID string           `json:"payment_intent_id" db:"payment_intent_id"`
	Amount          int64            `json:"amount" db:"amount"`
	ProcessedAt     time.Time        `json:"processed_at" db:"processed_at"`
}
