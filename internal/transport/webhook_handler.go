package transport

import (
	"errors"
	"io"
	"net/http"

	"resale-market/internal/domain"
	"resale-market/internal/middleware"
	"resale-market/internal/payment"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Stripe payloads are far below this
const maxWebhookBytes = 64 << 10

// EventParser authenticates a raw gateway callback
type EventParser interface {
	Parse(payload []byte, signatureHeader string) (*domain.PaymentEvent, error)
}

// WebhookHandler receives payment gateway callbacks. Any non-2xx response
// makes the gateway redeliver, so only transient failures return one.
type WebhookHandler struct {
	parser   EventParser
	payments service.PaymentService
	logger   *zap.Logger
}

func NewWebhookHandler(parser EventParser, payments service.PaymentService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, payments: payments, logger: logger}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/webhooks/payments", h.Payments)
}

func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Rejected oversized webhook", zap.Int64("limit", tooLarge.Limit))
			middleware.RespondWithErrorDetails(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large", nil)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	event, err := h.parser.Parse(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrIgnoredEvent):
		w.WriteHeader(http.StatusOK)
		return
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.Warn("Rejected webhook with invalid signature", zap.String("remote_addr", r.RemoteAddr))
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "INVALID_SIGNATURE", "invalid signature", nil)
		return
	case err != nil:
		// redelivery would not fix a malformed event
		h.logger.Error("Malformed payment event", zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "MALFORMED_EVENT", "malformed event", nil)
		return
	}

	if err := h.payments.HandleEvent(r.Context(), event); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
