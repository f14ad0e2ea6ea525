package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the internal account mapped from an identity-provider subject
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ExternalID    string    `json:"-" db:"external_id"`
	Email         string    `json:"email,omitempty" db:"email"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	Role          string    `json:"role" db:"role"`
	AverageRating float64   `json:"average_rating" db:"average_rating"`
	ReviewCount   int       `json:"review_count" db:"review_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ExternalIdentity is what a verified identity token tells us about the caller
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
	Role    string
}

// Profile is the public view of a user
type Profile struct {
	User
	FollowerCount int `json:"follower_count"`
}
