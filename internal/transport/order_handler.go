package transport

import (
	"errors"
	"net/http"
	"time"

	"resale-market/internal/domain"
	"resale-market/internal/middleware"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutRequest starts the purchase of a single item
type CheckoutRequest struct {
	ProductID         string `json:"product_id" validate:"required,uuid"`
	ShippingAddressID string `json:"shipping_address_id" validate:"omitempty,uuid"`
}

// CheckoutResponse carries what the client needs to confirm payment
type CheckoutResponse struct {
	Order        *domain.Order   `json:"order"`
	Product      *domain.Product `json:"product"`
	ClientSecret string          `json:"client_secret"`
}

type ShipRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=64"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// SweepRequest overrides the configured pending age for one admin sweep
type SweepRequest struct {
	OlderThan string `json:"older_than"`
}

// SweepResponse reports how many orders the sweep cancelled
type SweepResponse struct {
	Cancelled int `json:"cancelled"`
}

// OrderHandler serves the order lifecycle
type OrderHandler struct {
	orders     service.OrderService
	pendingTTL time.Duration
	batchSize  int
	logger     *zap.Logger
}

func NewOrderHandler(orders service.OrderService, pendingTTL time.Duration, batchSize int, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, pendingTTL: pendingTTL, batchSize: batchSize, logger: logger}
}

// RegisterRoutes registers all order routes. Every route requires auth and
// the sweep additionally requires the admin role.
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Checkout)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/ship", h.Ship)
		r.Post("/{id}/deliver", h.ConfirmDelivery)
		r.Post("/{id}/cancel", h.Cancel)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))
		r.Post("/sweep", h.Sweep)
	})
}

// Checkout reserves the product and opens a payment intent for it
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	// both were validated as uuids
	productID := uuid.MustParse(req.ProductID)
	var addressID *uuid.UUID
	if req.ShippingAddressID != "" {
		id := uuid.MustParse(req.ShippingAddressID)
		addressID = &id
	}

	result, err := h.orders.Checkout(r.Context(), actor, productID, addressID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusCreated, CheckoutResponse{
		Order:        result.Order,
		Product:      result.Product,
		ClientSecret: result.ClientSecret,
	})
}

// List handles GET /api/orders?role=buyer|seller&status=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	page, size := pageParams(r)
	q := r.URL.Query()

	role := domain.OrderRoleBuyer
	switch q.Get("role") {
	case "", string(domain.OrderRoleBuyer):
	case string(domain.OrderRoleSeller):
		role = domain.OrderRoleSeller
	default:
		middleware.RespondWithAppError(w, r, h.logger, errInvalidQuery)
		return
	}

	var status *domain.OrderStatus
	if raw := q.Get("status"); raw != "" {
		s := domain.OrderStatus(raw)
		if !s.Valid() {
			middleware.RespondWithAppError(w, r, h.logger, errInvalidQuery)
			return
		}
		status = &s
	}

	orders, total, err := h.orders.List(r.Context(), actor, role, status, page, size)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithPage(w, orders, page, size, total)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	order, err := h.orders.Get(r.Context(), id, actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, order)
}

func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req ShipRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orders.Ship(r.Context(), id, actor, req.TrackingNumber)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, order)
}

func (h *OrderHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	order, err := h.orders.ConfirmDelivery(r.Context(), id, actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, order)
}

// Cancel accepts an optional body with a reason
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req CancelRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil && !errors.Is(err, middleware.ErrEmptyBody) {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orders.Cancel(r.Context(), id, actor, req.Reason)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, order)
}

// Sweep cancels stale pending orders once
func (h *OrderHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil && !errors.Is(err, middleware.ErrEmptyBody) {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	olderThan := h.pendingTTL
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil || d <= 0 {
			middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "INVALID_DURATION", "older_than must be a positive duration such as 30m", nil)
			return
		}
		olderThan = d
	}

	cancelled, err := h.orders.CancelStalePending(r.Context(), olderThan, h.batchSize)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Admin sweep completed",
		zap.Duration("older_than", olderThan),
		zap.Int("cancelled", cancelled),
	)
	middleware.RespondWithData(w, http.StatusOK, SweepResponse{Cancelled: cancelled})
}
