package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resale-market/internal/domain"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	// ErrIgnoredEvent marks a verified event type this service does not act on
	ErrIgnoredEvent = errors.New("event type not handled")
)

// WebhookVerifier authenticates gateway callbacks and maps them to domain events
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewWebhookVerifier creates a verifier for the endpoint signing secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Parse verifies the Stripe-Signature header over payload and extracts the
// payment event it describes.
func (v *WebhookVerifier) Parse(payload []byte, signatureHeader string) (*domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	eventType := domain.PaymentEventType(event.Type)
	switch eventType {
	case domain.PaymentSucceeded, domain.PaymentFailed, domain.PaymentCanceled:
	default:
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	var pi stripe.PaymentIntent
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	orderID, err := uuid.Parse(pi.Metadata[MetadataOrderID])
	if err != nil {
		return nil, fmt.Errorf("%w: payment intent %s has no order id", ErrMalformedEvent, pi.ID)
	}

	return &domain.PaymentEvent{
		ID:              event.ID,
		Type:            eventType,
		OrderID:         orderID,
		PaymentIntentID: pi.ID,
		Amount:          pi.Amount,
		ProcessedAt:     time.Now().UTC(),
	}, nil
}
