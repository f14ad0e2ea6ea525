package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProductStatus is the availability state of a listed item
type ProductStatus string

const (
	ProductAvailable ProductStatus = "AVAILABLE"
	ProductReserved  ProductStatus = "RESERVED"
	ProductSold      ProductStatus = "SOLD"
	ProductRemoved   ProductStatus = "REMOVED"
)

// Valid reports whether s is a known product status
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductAvailable, ProductReserved, ProductSold, ProductRemoved:
		return true
	}
	return false
}

// Product is a single physical item listed by a seller. Price is in minor units.
type Product struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	SellerID    uuid.UUID     `json:"seller_id" db:"seller_id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Brand       string        `json:"brand,omitempty" db:"brand"`
	Size        string        `json:"size,omitempty" db:"size"`
	Condition   string        `json:"condition" db:"condition"`
	ImageURL    string        `json:"image_url,omitempty" db:"image_url"`
	Price       int64         `json:"price" db:"price"`
	Currency    string        `json:"currency" db:"currency"`
	Status      ProductStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	Status   *ProductStatus
	SellerID *uuid.UUID
	SortBy   string
	SortDesc bool
	Page     int
	PageSize int
}
