package postgres

import (
	"context"
	"fmt"
)

// RecordDelivery inserts deliveryID and returns false (without error) if
// it was already recorded, implementing webhook idempotency via the
// primary key uniqueness constraint.
func (s *Store) RecordDelivery(ctx context.Context, deliveryID string, receivedAt string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (delivery_id, received_at) VALUES ($1, $2) ON CONFLICT (delivery_id) DO NOTHING`,
		deliveryID, receivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("record delivery: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record delivery rows affected: %w", err)
	}
	return n == 1, nil
}
