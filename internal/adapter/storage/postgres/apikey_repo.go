package postgres

import (
	"context"
	"fmt"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// APIKeyRepo implements ports.APIKeyRepository.
type APIKeyRepo struct {
	pool Pool
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(pool Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

// Create inserts a new API key record. Only the hash and the clear prefix
// are stored.
func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	query := `INSERT INTO api_keys (id, account_id, name, hash, prefix, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		k.ID, k.AccountID, k.Name, k.Hash, k.Prefix, k.LastUsedAt, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// ListByPrefix returns key records matching the clear prefix. Authentication
// narrows candidates by prefix, then verifies the hash of each.
func (r *APIKeyRepo) ListByPrefix(ctx context.Context, prefix string) ([]domain.APIKey, error) {
	query := `SELECT id, account_id, name, hash, prefix, last_used_at, created_at
		FROM api_keys WHERE prefix = $1`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("list api keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(
			&k.ID, &k.AccountID, &k.Name, &k.Hash, &k.Prefix,
			&k.LastUsedAt, &k.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// TouchLastUsed stamps the key's last successful use.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
