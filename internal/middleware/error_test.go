package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resale-market/internal/apperror"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var standardCodes = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusServiceUnavailable,
}

// Feature: resale-market, Property 11: Errors have consistent structure
func TestProperty_ErrorsHaveConsistentStructure(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all error responses have consistent structure", prop.ForAll(
		func(message string, pick int) bool {
			statusCode := standardCodes[pick%len(standardCodes)]

			w := httptest.NewRecorder()
			RespondWithError(w, statusCode, message)

			if w.Code != statusCode || w.Header().Get("Content-Type") != "application/json" {
				return false
			}

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}

			if response.Success || response.Error.Code == "" || response.Error.Message != message {
				return false
			}
			_, err := time.Parse(time.RFC3339, response.Error.Timestamp)
			return err == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.IntRange(0, len(standardCodes)-1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: resale-market, Property 12: Error kinds map to fixed status codes
func TestProperty_AppErrorKindsMapToStatus(t *testing.T) {
	properties := gopter.NewProperties(nil)

	kinds := []apperror.Kind{
		apperror.KindValidation,
		apperror.KindNotFound,
		apperror.KindUnauthorized,
		apperror.KindForbidden,
		apperror.KindConflict,
		apperror.KindDependency,
		apperror.KindInternal,
	}
	want := []int{400, 404, 401, 403, 409, 503, 500}

	properties.Property("status and code come from the classified error", prop.ForAll(
		func(i int, code string) bool {
			err := apperror.New(kinds[i], code, "something happened")

			w := httptest.NewRecorder()
			RespondWithAppError(w, httptest.NewRequest("GET", "/", nil), zap.NewNop(), err)

			var response ErrorResponse
			if json.Unmarshal(w.Body.Bytes(), &response) != nil {
				return false
			}
			return w.Code == want[i] && response.Error.Code == code
		},
		gen.IntRange(0, len(kinds)-1),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAppErrorHidesCauses(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{apperror.Dependency("failed to load order", errors.New("dial tcp 10.0.0.5:5432")), 503, "service temporarily unavailable, please retry"},
		{errors.New("nil pointer somewhere"), 500, "internal server error"},
		{apperror.New(apperror.KindConflict, "NOT_AVAILABLE", "this item was just sold"), 409, "this item was just sold"},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		RespondWithAppError(w, httptest.NewRequest("POST", "/api/orders", nil), zap.NewNop(), tc.err)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, tc.status, w.Code)
		assert.Equal(t, tc.message, response.Error.Message)
	}
}

func TestErrorDetailsAreIncluded(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithValidationErrors(w, []ValidationError{{Field: "price", Message: "This field is required"}})

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", response.Error.Code)
	assert.Contains(t, response.Error.Details, "validation_errors")
}

func TestRespondWithDataAndPage(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithData(w, http.StatusCreated, map[string]string{"id": "1"})

	var data struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, data.Success)
	assert.Equal(t, "1", data.Data["id"])

	w = httptest.NewRecorder()
	RespondWithPage(w, []int{1, 2}, 2, 2, 7)

	var page PagedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 2, page.Page)
}

func TestErrorHandlingMiddlewareRecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "internal server error", response.Error.Message)
}
