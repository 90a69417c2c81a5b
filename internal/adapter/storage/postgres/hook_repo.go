package postgres

import (
	"context"
	"errors"
	"fmt"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HookSubscriptionRepo implements ports.HookSubscriptionRepository.
type HookSubscriptionRepo struct {
	pool Pool
}

// NewHookSubscriptionRepo creates a new HookSubscriptionRepo.
func NewHookSubscriptionRepo(pool Pool) *HookSubscriptionRepo {
	return &HookSubscriptionRepo{pool: pool}
}

const hookColumns = `id, account_id, event, target_url, secret, active, correlation_id, created_at`

// Create inserts a new hook subscription.
func (r *HookSubscriptionRepo) Create(ctx context.Context, s *domain.HookSubscription) error {
	query := `INSERT INTO hook_subscriptions (` + hookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.AccountID, s.Event, s.TargetURL, s.Secret,
		s.Active, s.CorrelationID, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert hook subscription: %w", err)
	}
	return nil
}

// GetByID fetches a subscription by its UUID.
func (r *HookSubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.HookSubscription, error) {
	query := `SELECT ` + hookColumns + ` FROM hook_subscriptions WHERE id = $1`

	s := &domain.HookSubscription{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.AccountID, &s.Event, &s.TargetURL, &s.Secret,
		&s.Active, &s.CorrelationID, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get hook subscription by id: %w", err)
	}
	return s, nil
}

// ListByAccount returns all subscriptions owned by the account, newest
// first.
func (r *HookSubscriptionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.HookSubscription, error) {
	query := `SELECT ` + hookColumns + ` FROM hook_subscriptions
		WHERE account_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, accountID)
}

// ListActiveByEvent returns the account's active subscriptions for the
// event.
func (r *HookSubscriptionRepo) ListActiveByEvent(ctx context.Context, accountID uuid.UUID, event string) ([]domain.HookSubscription, error) {
	query := `SELECT ` + hookColumns + ` FROM hook_subscriptions
		WHERE account_id = $1 AND event = $2 AND active = TRUE
		ORDER BY created_at ASC`
	return r.list(ctx, query, accountID, event)
}

func (r *HookSubscriptionRepo) list(ctx context.Context, query string, args ...any) ([]domain.HookSubscription, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list hook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.HookSubscription
	for rows.Next() {
		var s domain.HookSubscription
		if err := rows.Scan(
			&s.ID, &s.AccountID, &s.Event, &s.TargetURL, &s.Secret,
			&s.Active, &s.CorrelationID, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan hook subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Delete removes the subscription.
func (r *HookSubscriptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM hook_subscriptions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete hook subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetActive flips the subscription's active flag.
func (r *HookSubscriptionRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE hook_subscriptions SET active=$1 WHERE id=$2`
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set hook subscription active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
