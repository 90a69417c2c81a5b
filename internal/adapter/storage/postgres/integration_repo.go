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

// IntegrationRepo implements ports.IntegrationRepository.
type IntegrationRepo struct {
	pool Pool
}

// NewIntegrationRepo creates a new IntegrationRepo.
func NewIntegrationRepo(pool Pool) *IntegrationRepo {
	return &IntegrationRepo{pool: pool}
}

// GetByID fetches an integration by its UUID.
func (r *IntegrationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error) {
	query := `SELECT id, account_id, type, credentials_enc, active, created_at, updated_at
		FROM integrations WHERE id = $1`

	i := &domain.Integration{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&i.ID, &i.AccountID, &i.Type, &i.CredentialsEnc,
		&i.Active, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get integration by id: %w", err)
	}
	return i, nil
}

// ListActiveByForm returns the form's active integration links joined with
// their integrations, in creation order. Links whose parent integration is
// inactive are excluded.
func (r *IntegrationRepo) ListActiveByForm(ctx context.Context, formID uuid.UUID) ([]domain.FormIntegration, error) {
	query := `SELECT fi.id, fi.form_id, fi.integration_id, fi.settings, fi.active,
		i.id, i.account_id, i.type, i.credentials_enc, i.active, i.created_at, i.updated_at
		FROM form_integrations fi
		JOIN integrations i ON i.id = fi.integration_id
		WHERE fi.form_id = $1 AND fi.active = TRUE AND i.active = TRUE
		ORDER BY fi.created_at ASC`

	rows, err := r.pool.Query(ctx, query, formID)
	if err != nil {
		return nil, fmt.Errorf("list form integrations: %w", err)
	}
	defer rows.Close()

	var links []domain.FormIntegration
	for rows.Next() {
		var fi domain.FormIntegration
		var settings []byte
		i := &domain.Integration{}
		if err := rows.Scan(
			&fi.ID, &fi.FormID, &fi.IntegrationID, &settings, &fi.Active,
			&i.ID, &i.AccountID, &i.Type, &i.CredentialsEnc,
			&i.Active, &i.CreatedAt, &i.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan form integration: %w", err)
		}
		if len(settings) > 0 {
			if err := json.Unmarshal(settings, &fi.Settings); err != nil {
				return nil, fmt.Errorf("decode integration settings: %w", err)
			}
		}
		fi.Integration = i
		links = append(links, fi)
	}
	return links, rows.Err()
}

// SetActive flips the integration's active flag.
func (r *IntegrationRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE integrations SET active=$1, updated_at=NOW() WHERE id=$2`
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set integration active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
