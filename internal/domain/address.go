package domain

import (
	"time"

	"github.com/google/uuid"
)

type AddressType string

const (
	AddressShipping AddressType = "SHIPPING"
	AddressBilling  AddressType = "BILLING"
)

// Address is a postal address owned by a user
type Address struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	UserID     uuid.UUID   `json:"user_id" db:"user_id"`
	Type       AddressType `json:"type" db:"type"`
	FullName   string      `json:"full_name" db:"full_name"`
	Line1      string      `json:"line1" db:"line1"`
	Line2      string      `json:"line2,omitempty" db:"line2"`
	City       string      `json:"city" db:"city"`
	State      string      `json:"state,omitempty" db:"state"`
	PostalCode string      `json:"postal_code" db:"postal_code"`
	Country    string      `json:"country" db:"country"`
	Phone      string      `json:"phone,omitempty" db:"phone"`
	IsDefault  bool        `json:"is_default" db:"is_default"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}
