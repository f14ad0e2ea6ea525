package transport

import (
	"net/http"

	"resale-market/internal/domain"
	"resale-market/internal/middleware"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddressRequest is the body for creating or replacing an address
type AddressRequest struct {
	Type       string `json:"type" validate:"required,oneof=SHIPPING BILLING"`
	FullName   string `json:"full_name" validate:"required,max=120"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,len=2"`
	Phone      string `json:"phone" validate:"max=30"`
	IsDefault  bool   `json:"is_default"`
}

func (req AddressRequest) input() service.AddressInput {
	return service.AddressInput{
		Type:       domain.AddressType(req.Type),
		FullName:   req.FullName,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	}
}

// AddressHandler serves the caller's address book
type AddressHandler struct {
	addresses service.AddressService
	logger    *zap.Logger
}

func NewAddressHandler(addresses service.AddressService, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{addresses: addresses, logger: logger}
}

// RegisterRoutes registers all address routes. Every route requires auth.
func (h *AddressHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/addresses", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/default", h.SetDefault)
	})
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	addresses, err := h.addresses.List(r.Context(), actor.UserID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, addresses)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req AddressRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	address, err := h.addresses.Create(r.Context(), actor.UserID, req.input())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusCreated, address)
}

// Update replaces every writable field of an address the caller owns
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req AddressRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	address, err := h.addresses.Update(r.Context(), actor.UserID, id, req.input())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, address)
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.addresses.Delete(r.Context(), actor.UserID, id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
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

	address, err := h.addresses.SetDefault(r.Context(), actor.UserID, id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, address)
}
