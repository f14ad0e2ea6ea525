package repository

import (
	"context"
	"database/sql"
	"fmt"

	"resale-market/internal/domain"
)

// PaymentEventRepository records gateway events that have been applied
type PaymentEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, event *domain.PaymentEvent) (bool, error)
}

type paymentEventRepository struct {
	db *sql.DB
}

// NewPaymentEventRepository creates a new instance of PaymentEventRepository
func NewPaymentEventRepository(db *sql.DB) PaymentEventRepository {
	return &paymentEventRepository{db: db}
}

// Exists reports whether an event id has already been recorded
func (r *paymentEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_events WHERE event_id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payment event: %w", err)
	}
	return exists, nil
}

// Record stores an event id once. It returns false when the id was already present.
func (r *paymentEventRepository) Record(ctx context.Context, event *domain.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (event_id, order_id, type, payment_intent_id, amount, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.OrderID,
		event.Type,
		event.PaymentIntentID,
		event.Amount,
		event.ProcessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record payment event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}
