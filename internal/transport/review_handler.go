package transport

import (
	"net/http"

	"resale-market/internal/middleware"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewRequest rates the seller of a delivered order
type ReviewRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type ReviewHandler struct {
	reviews service.ReviewService
	logger  *zap.Logger
}

func NewReviewHandler(reviews service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

func (h *ReviewHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Post("/api/reviews", h.Create)
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req ReviewRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	review, err := h.reviews.Create(r.Context(), actor.UserID, uuid.MustParse(req.OrderID), req.Rating, req.Comment)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusCreated, review)
}
