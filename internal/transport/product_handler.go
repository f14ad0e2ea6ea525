package transport

import (
	"net/http"

	"resale-market/internal/domain"
	"resale-market/internal/middleware"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProductRequest represents a new listing
type CreateProductRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=140"`
	Description string `json:"description" validate:"max=4000"`
	Brand       string `json:"brand" validate:"max=80"`
	Size        string `json:"size" validate:"max=20"`
	Condition   string `json:"condition" validate:"required,oneof=new like_new good fair"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Price       int64  `json:"price" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

// ProductHandler serves the catalog and favorites
type ProductHandler struct {
	catalog service.CatalogService
	social  service.SocialService
	logger  *zap.Logger
}

func NewProductHandler(catalog service.CatalogService, social service.SocialService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, social: social, logger: logger}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/search", h.Search)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Create)
			r.Delete("/{id}", h.Remove)
			r.Post("/{id}/favorite", h.ToggleFavorite)
		})
	})

	r.With(authMiddleware).Get("/api/favorites", h.ListFavorites)
}

// List handles GET /api/products?status=&seller_id=&sort=&order=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size := pageParams(r)

	filter := domain.ProductFilter{
		SortBy:   q.Get("sort"),
		SortDesc: q.Get("order") == "desc",
		Page:     page,
		PageSize: size,
	}

	if raw := q.Get("status"); raw != "" {
		status := domain.ProductStatus(raw)
		if !status.Valid() {
			middleware.RespondWithAppError(w, r, h.logger, errInvalidQuery)
			return
		}
		filter.Status = &status
	} else {
		available := domain.ProductAvailable
		filter.Status = &available
	}

	if raw := q.Get("seller_id"); raw != "" {
		sellerID, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithAppError(w, r, h.logger, errInvalidID)
			return
		}
		filter.SellerID = &sellerID
	}

	products, total, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithPage(w, products, page, size, total)
}

// Search handles GET /api/products/search?q=
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)

	products, total, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"), page, size)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithPage(w, products, page, size, total)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, product)
}

// Create handles listing a new item for sale
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Listing validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalog.CreateListing(r.Context(), actor.UserID, service.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Brand:       req.Brand,
		Size:        req.Size,
		Condition:   req.Condition,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Currency:    req.Currency,
	})
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusCreated, product)
}

// Remove soft-deletes a listing owned by the caller
func (h *ProductHandler) Remove(w http.ResponseWriter, r *http.Request) {
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

	product, err := h.catalog.Remove(r.Context(), id, actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, product)
}

func (h *ProductHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.social.ToggleFavorite(r.Context(), actor.UserID, id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithData(w, http.StatusOK, result)
}

func (h *ProductHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	page, size := pageParams(r)

	products, total, err := h.social.ListFavorites(r.Context(), actor.UserID, page, size)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithPage(w, products, page, size, total)
}
