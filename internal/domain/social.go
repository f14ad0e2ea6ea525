package domain

import (
	"time"

	"github.com/google/uuid"
)

type Favorite struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Follow struct {
	FollowerID uuid.UUID `json:"follower_id" db:"follower_id"`
	FolloweeID uuid.UUID `json:"followee_id" db:"followee_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ToggleResult is the state of a relation after a toggle
type ToggleResult struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}
