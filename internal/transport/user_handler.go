package transport

import (
	"net/http"

	"resale-market/internal/middleware"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler serves accounts, public profiles, reviews and follows
type UserHandler struct {
	identity service.IdentityService
	social   service.SocialService
	reviews  service.ReviewService
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(identity service.IdentityService, social service.SocialService, reviews service.ReviewService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		identity: identity,
		social:   social,
		reviews:  reviews,
		logger:   logger,
	}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/api/me", h.Me)

	r.Route("/api/users/{id}", func(r chi.Router) {
		// Public routes
		r.Get("/", h.GetProfile)
		r.Get("/reviews", h.ListReviews)

		// Protected routes
		r.With(authMiddleware).Post("/follow", h.ToggleFollow)
	})
}

// Me returns the caller's own account including email
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	user, err := h.identity.GetUser(r.Context(), actor.UserID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, user)
}

// GetProfile returns the public view of a seller
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	profile, err := h.identity.GetProfile(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, profile)
}

func (h *UserHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	page, size := pageParams(r)

	reviews, total, err := h.reviews.ListFor(r.Context(), id, page, size)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithPage(w, reviews, page, size, total)
}

func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.social.ToggleFollow(r.Context(), actor.UserID, id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, result)
}
