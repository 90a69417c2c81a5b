package postgres

import (
	"context"
	"fmt"
	"time"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
)

// DeliveryLogRepo implements ports.DeliveryLogRepository. The table is
// append-only; there is no update path.
type DeliveryLogRepo struct {
	pool Pool
}

// NewDeliveryLogRepo creates a new DeliveryLogRepo.
func NewDeliveryLogRepo(pool Pool) *DeliveryLogRepo {
	return &DeliveryLogRepo{pool: pool}
}

// Create inserts one delivery attempt row.
func (r *DeliveryLogRepo) Create(ctx context.Context, l *domain.DeliveryLog) error {
	query := `INSERT INTO delivery_logs
		(id, destination_kind, destination_id, event, payload, status_code, success, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		l.ID, string(l.DestinationKind), l.DestinationID, l.Event,
		l.Payload, l.StatusCode, l.Success, l.Error, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// ListByDestination returns the destination's most recent attempts.
func (r *DeliveryLogRepo) ListByDestination(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, limit int) ([]domain.DeliveryLog, error) {
	query := `SELECT id, destination_kind, destination_id, event, payload, status_code, success, error, created_at
		FROM delivery_logs
		WHERE destination_kind = $1 AND destination_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, string(kind), id, limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.DeliveryLog
	for rows.Next() {
		var l domain.DeliveryLog
		var kindStr string
		if err := rows.Scan(
			&l.ID, &kindStr, &l.DestinationID, &l.Event, &l.Payload,
			&l.StatusCode, &l.Success, &l.Error, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		l.DestinationKind = domain.DestinationKind(kindStr)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CountRecentFailures counts failed attempts for one destination within the
// trailing window. The deactivation policy depends on this query being
// durable: counts survive restarts and stay consistent across concurrent
// dispatch workers.
func (r *DeliveryLogRepo) CountRecentFailures(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, window time.Duration) (int, error) {
	query := `SELECT COUNT(*) FROM delivery_logs
		WHERE destination_kind = $1 AND destination_id = $2
		AND success = FALSE AND created_at > $3`

	var count int
	err := r.pool.QueryRow(ctx, query, string(kind), id, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent failures: %w", err)
	}
	return count, nil
}
