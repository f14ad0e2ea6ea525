package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resale-market/internal/domain"

	"go.uber.org/zap"
)

const (
	envelopeVersion = 1
	producerName    = "resale-market-api"
)

// Publisher delivers a change notification to one transport
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Envelope is the wire format shared by every transport
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	UserID       string          `json:"user_id"`
	Payload      json.RawMessage `json:"payload"`
}

// Encode wraps an event in the shared envelope
func Encode(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload: %w", err)
	}

	return json.Marshal(Envelope{
		EventID:      event.ID.String(),
		EventType:    event.Type,
		EventVersion: envelopeVersion,
		OccurredAt:   event.OccurredAt,
		Producer:     producerName,
		UserID:       event.UserID.String(),
		Payload:      payload,
	})
}

// Fanout publishes to every configured transport. Delivery is best-effort:
// failures are logged and never reach the caller.
type Fanout struct {
	publishers []Publisher
	timeout    time.Duration
	logger     *zap.Logger
}

// NewFanout combines publishers
func NewFanout(logger *zap.Logger, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, timeout: 2 * time.Second, logger: logger}
}

// Publish always returns nil
func (f *Fanout) Publish(ctx context.Context, event domain.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Warn("Failed to publish event",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.Type),
				zap.String("user_id", event.UserID.String()),
				zap.String("transport", fmt.Sprintf("%T", p)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Noop discards events
type Noop struct{}

func (Noop) Publish(context.Context, domain.Event) error { return nil }
