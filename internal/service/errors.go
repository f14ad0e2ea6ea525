package service

import (
	"resale-market/internal/apperror"
	"resale-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound   = apperror.New(apperror.KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	ErrSelfPurchase      = apperror.New(apperror.KindValidation, "SELF_PURCHASE", "you cannot buy your own listing")
	ErrNotAvailable      = apperror.New(apperror.KindConflict, "NOT_AVAILABLE", "this item was just sold")
	ErrNotRemovable      = apperror.New(apperror.KindConflict, "NOT_REMOVABLE", "only available listings can be removed")
	ErrOrderNotFound     = apperror.New(apperror.KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrInvalidTransition = apperror.New(apperror.KindConflict, "INVALID_TRANSITION", "order cannot move to the requested status")
	ErrForbidden         = apperror.New(apperror.KindForbidden, "FORBIDDEN", "you are not allowed to perform this action")
	ErrAlreadyReviewed   = apperror.New(apperror.KindConflict, "ALREADY_REVIEWED", "this order has already been reviewed")
	ErrOrderNotDelivered = apperror.New(apperror.KindConflict, "ORDER_NOT_DELIVERED", "only delivered orders can be reviewed")
	ErrInvalidRating     = apperror.New(apperror.KindValidation, "INVALID_RATING", "rating must be between 1 and 5")
	ErrAddressNotFound   = apperror.New(apperror.KindNotFound, "ADDRESS_NOT_FOUND", "address not found")
	ErrSelfFollow        = apperror.New(apperror.KindValidation, "SELF_FOLLOW", "you cannot follow yourself")
	ErrUserNotFound      = apperror.New(apperror.KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrPaymentDeclined   = apperror.New(apperror.KindValidation, "PAYMENT_DECLINED", "payment could not be started for this order")
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
