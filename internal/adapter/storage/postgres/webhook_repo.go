package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

const webhookColumns = `id, account_id, name, url, secret, events, headers, active, created_at, updated_at`

// Create inserts a new webhook.
func (r *WebhookRepo) Create(ctx context.Context, w *domain.Webhook) error {
	headers, err := json.Marshal(w.Headers)
	if err != nil {
		return fmt.Errorf("encode webhook headers: %w", err)
	}

	query := `INSERT INTO webhooks (` + webhookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		w.ID, w.AccountID, w.Name, w.URL, w.Secret,
		w.Events, headers, w.Active, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

// GetByID fetches a webhook by its UUID.
func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	w, err := scanWebhook(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook by id: %w", err)
	}
	return w, nil
}

// ListByAccount returns all webhooks owned by the account, newest first.
func (r *WebhookRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks
		WHERE account_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, accountID)
}

// ListActiveByEvent returns the account's active webhooks subscribed to the
// event.
func (r *WebhookRepo) ListActiveByEvent(ctx context.Context, accountID uuid.UUID, event string) ([]domain.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks
		WHERE account_id = $1 AND active = TRUE AND $2 = ANY(events)
		ORDER BY created_at ASC`
	return r.list(ctx, query, accountID, event)
}

func (r *WebhookRepo) list(ctx context.Context, query string, args ...any) ([]domain.Webhook, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []domain.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, *w)
	}
	return webhooks, rows.Err()
}

// Update rewrites the webhook's mutable fields, the secret included so
// rotation goes through the same path.
func (r *WebhookRepo) Update(ctx context.Context, w *domain.Webhook) error {
	headers, err := json.Marshal(w.Headers)
	if err != nil {
		return fmt.Errorf("encode webhook headers: %w", err)
	}

	query := `UPDATE webhooks
		SET name=$1, url=$2, secret=$3, events=$4, headers=$5, active=$6, updated_at=NOW()
		WHERE id=$7`
	tag, err := r.pool.Exec(ctx, query,
		w.Name, w.URL, w.Secret, w.Events, headers, w.Active, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the webhook.
func (r *WebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webhooks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetActive flips the webhook's active flag.
func (r *WebhookRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE webhooks SET active=$1, updated_at=NOW() WHERE id=$2`
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set webhook active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanWebhook(row pgx.Row) (*domain.Webhook, error) {
	w := &domain.Webhook{}
	var headers []byte
	if err := row.Scan(
		&w.ID, &w.AccountID, &w.Name, &w.URL, &w.Secret,
		&w.Events, &headers, &w.Active, &w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &w.Headers); err != nil {
			return nil, fmt.Errorf("decode webhook headers: %w", err)
		}
	}
	return w, nil
}
