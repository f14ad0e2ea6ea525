package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"resale-market/internal/apperror"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// DataResponse wraps a successful payload
type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// PagedResponse wraps a page of results
type PagedResponse struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Total    int         `json:"total"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, http.StatusText(statusCode), message, nil)
}

// RespondWithErrorDetails sends a structured error response with a code and additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	RespondWithJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "VALIDATION_FAILED", "validation failed", details)
}

// RespondWithAppError maps a service error to its status code. Internal and
// dependency failures are logged and their causes kept out of the response.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Internal("internal server error", err)
	}

	message := appErr.Message
	switch appErr.Kind {
	case apperror.KindInternal:
		logger.Error("Request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = "internal server error"
	case apperror.KindDependency:
		logger.Error("Dependency unavailable",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = "service temporarily unavailable, please retry"
	}

	RespondWithErrorDetails(w, appErr.Kind.HTTPStatus(), appErr.Code, message, nil)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("request_id", middleware.GetReqID(r.Context())),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// RespondWithData sends a success envelope
func RespondWithData(w http.ResponseWriter, statusCode int, data interface{}) {
	RespondWithJSON(w, statusCode, DataResponse{Success: true, Data: data})
}

// RespondWithPage sends a success envelope with paging metadata
func RespondWithPage(w http.ResponseWriter, data interface{}, page, pageSize, total int) {
	RespondWithJSON(w, http.StatusOK, PagedResponse{
		Success:  true,
		Data:     data,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}
