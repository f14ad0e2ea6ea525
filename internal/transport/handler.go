package transport

import (
	"net/http"
	"strconv"

	"resale-market/internal/apperror"
	"resale-market/internal/middleware"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	errUnauthenticated = apperror.New(apperror.KindUnauthorized, "UNAUTHENTICATED", "authentication required")
	errInvalidID       = apperror.New(apperror.KindValidation, "INVALID_ID", "invalid identifier")
	errInvalidQuery    = apperror.New(apperror.KindValidation, "INVALID_QUERY", "invalid query parameter")
)

// actorFrom reads the caller placed in the context by the auth middleware
func actorFrom(r *http.Request) (service.Actor, error) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return service.Actor{}, errUnauthenticated
	}
	role, _ := middleware.GetUserRole(r.Context())
	return service.Actor{UserID: userID, Role: role}, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

// pageParams reads page and page_size, falling back to defaults for missing
// or unusable values
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
