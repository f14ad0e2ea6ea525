package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a buyer's rating of the seller for one delivered order
type Review struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OrderID    uuid.UUID `json:"order_id" db:"order_id"`
	ReviewerID uuid.UUID `json:"reviewer_id" db:"reviewer_id"`
	ReviewedID uuid.UUID `json:"reviewed_id" db:"reviewed_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
