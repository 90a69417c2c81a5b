package service

import (
	"context"
	"encoding/json"
	"fmt"

	"formpulse-relay/config"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// integrationService implements ports.IntegrationService: the configuration
// surface's credential tests and container discovery. Neither operation is
// on the dispatch path.
type integrationService struct {
	repo     ports.IntegrationRepository
	encSvc   ports.EncryptionService
	registry ports.ProviderRegistry
	cfg      config.DispatchConfig
	log      zerolog.Logger
}

// NewIntegrationService creates a new integration service.
func NewIntegrationService(
	repo ports.IntegrationRepository,
	encSvc ports.EncryptionService,
	registry ports.ProviderRegistry,
	cfg config.DispatchConfig,
	log zerolog.Logger,
) ports.IntegrationService {
	return &integrationService{
		repo:     repo,
		encSvc:   encSvc,
		registry: registry,
		cfg:      cfg,
		log:      log,
	}
}

// TestCredentials verifies a credential bundle against the live provider
// under the connectivity-test timeout.
func (s *integrationService) TestCredentials(ctx context.Context, t domain.IntegrationType, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	adapter, err := s.registry.Get(t)
	if err != nil {
		return nil, err
	}

	testCtx, cancel := context.WithTimeout(ctx, s.cfg.TestTimeout)
	defer cancel()

	identity, err := adapter.TestConnection(testCtx, creds)
	if err != nil {
		s.log.Debug().Err(err).Str("type", string(t)).Msg("credential test failed")
		return nil, err
	}
	return identity, nil
}

// DiscoverContainers enumerates the provider-side push targets (lists,
// databases, bases, pipelines) for a stored integration.
func (s *integrationService) DiscoverContainers(ctx context.Context, integrationID uuid.UUID) ([]domain.Container, error) {
	integ, err := s.repo.GetByID(ctx, integrationID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if integ == nil {
		return nil, apperror.ErrIntegrationNotFound()
	}

	adapter, err := s.registry.Get(integ.Type)
	if err != nil {
		return nil, err
	}
	discoverer, ok := adapter.(ports.ContainerDiscoverer)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("provider %s has no discoverable containers", integ.Type))
	}

	plaintext, err := s.encSvc.Decrypt(integ.CredentialsEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}
	var creds domain.Credentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	testCtx, cancel := context.WithTimeout(ctx, s.cfg.TestTimeout)
	defer cancel()

	return discoverer.DiscoverContainers(testCtx, creds)
}
