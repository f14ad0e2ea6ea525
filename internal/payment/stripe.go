package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway creates PaymentIntents through the Stripe API
type StripeGateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeGateway creates a gateway bound to a secret key
func NewStripeGateway(secretKey string, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		api:    client.New(secretKey, nil),
		logger: logger,
	}
}

// NewStripeGatewayWithBackends is used by tests to point the client at a fake API
func NewStripeGatewayWithBackends(secretKey string, backends *stripe.Backends, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		api:    client.New(secretKey, backends),
		logger: logger,
	}
}

// CreateCheckoutIntent opens a PaymentIntent for amount. The order id in
// metadata doubles as the idempotency key so a retried checkout reuses the
// same intent.
func (g *StripeGateway) CreateCheckoutIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if orderID, ok := metadata[MetadataOrderID]; ok {
		params.SetIdempotencyKey("checkout-" + orderID)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, g.classify(err)
	}

	g.logger.Info("Payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *StripeGateway) classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		g.logger.Warn("Stripe request failed",
			zap.String("type", string(stripeErr.Type)),
			zap.String("code", string(stripeErr.Code)),
			zap.Int("status", stripeErr.HTTPStatusCode),
			zap.String("request_id", stripeErr.RequestID),
		)
		if stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429 {
			return fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Msg)
		}
	} else {
		g.logger.Warn("Stripe request failed", zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
