package payment

import (
	"context"
	"errors"
)

// MetadataOrderID is the metadata key linking a gateway intent back to an order
const MetadataOrderID = "order_id"

var (
	// ErrDeclined means the gateway refused the request; retrying will not help
	ErrDeclined = errors.New("payment request declined")
	// ErrUnavailable means the gateway could not be reached or failed internally
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// Intent is a gateway-side payment session for one order
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// Gateway creates checkout intents. Capture and confirmation happen on the
// gateway side and are reported back through webhooks.
type Gateway interface {
	CreateCheckoutIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)
}
