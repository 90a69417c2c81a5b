package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// apiKeyPrefix marks automation keys so leaked strings are identifiable.
const apiKeyPrefix = "fp_hook_"

// apiKeyService implements ports.APIKeyService. Keys are stored only as an
// argon2id hash plus a short clear prefix used to narrow the lookup.
type apiKeyService struct {
	repo    ports.APIKeyRepository
	hashSvc ports.HashService
	log     zerolog.Logger
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(repo ports.APIKeyRepository, hashSvc ports.HashService, log zerolog.Logger) ports.APIKeyService {
	return &apiKeyService{
		repo:    repo,
		hashSvc: hashSvc,
		log:     log,
	}
}

// Generate creates a key for the account and returns the plaintext exactly
// once. Only the hash and the first characters survive in storage.
func (s *apiKeyService) Generate(ctx context.Context, accountID uuid.UUID, name string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	key := apiKeyPrefix + hex.EncodeToString(buf)

	hash, err := s.hashSvc.Hash(key)
	if err != nil {
		return "", fmt.Errorf("hashing api key: %w", err)
	}

	record := &domain.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      name,
		Hash:      hash,
		Prefix:    key[:domain.APIKeyPrefixLen],
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("key_id", record.ID.String()).
		Str("name", name).
		Msg("API key issued")

	return key, nil
}

// Authenticate resolves a presented key to its owning account. Candidates
// are narrowed by clear prefix, then each hash is verified.
func (s *apiKeyService) Authenticate(ctx context.Context, key string) (uuid.UUID, error) {
	if len(key) < domain.APIKeyPrefixLen {
		return uuid.Nil, apperror.ErrInvalidAPIKey()
	}

	candidates, err := s.repo.ListByPrefix(ctx, key[:domain.APIKeyPrefixLen])
	if err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(err)
	}

	for _, candidate := range candidates {
		ok, err := s.hashSvc.Verify(key, candidate.Hash)
		if err != nil {
			s.log.Warn().Err(err).Str("key_id", candidate.ID.String()).Msg("API key hash verify failed")
			continue
		}
		if ok {
			if err := s.repo.TouchLastUsed(ctx, candidate.ID); err != nil {
				s.log.Warn().Err(err).Str("key_id", candidate.ID.String()).Msg("failed to stamp API key use")
			}
			return candidate.AccountID, nil
		}
	}

	return uuid.Nil, apperror.ErrInvalidAPIKey()
}
