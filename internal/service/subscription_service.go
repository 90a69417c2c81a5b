package service

import (
	"context"
	"strings"
	"time"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// subscriptionService implements ports.SubscriptionService.
type subscriptionService struct {
	hookRepo        ports.HookSubscriptionRepository
	webhookRepo     ports.WebhookRepository
	integrationRepo ports.IntegrationRepository
	log             zerolog.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	hookRepo ports.HookSubscriptionRepository,
	webhookRepo ports.WebhookRepository,
	integrationRepo ports.IntegrationRepository,
	log zerolog.Logger,
) ports.SubscriptionService {
	return &subscriptionService{
		hookRepo:        hookRepo,
		webhookRepo:     webhookRepo,
		integrationRepo: integrationRepo,
		log:             log,
	}
}

// Subscribe registers a REST hook for one event. The per-subscription
// secret is generated here and returned only through this call path.
func (s *subscriptionService) Subscribe(ctx context.Context, accountID uuid.UUID, event, targetURL string) (*domain.HookSubscription, error) {
	if !domain.IsValidEvent(event) {
		return nil, apperror.ErrInvalidEvent(event, domain.ValidEvents())
	}
	if strings.TrimSpace(targetURL) == "" {
		return nil, apperror.ErrMissingTargetURL()
	}

	secret, err := domain.GenerateSecret()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	sub := &domain.HookSubscription{
		ID:        uuid.New(),
		AccountID: accountID,
		Event:     event,
		TargetURL: targetURL,
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := s.hookRepo.Create(ctx, sub); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("subscription_id", sub.ID.String()).
		Str("event", event).
		Msg("hook subscription created")

	return sub, nil
}

// Unsubscribe deletes a subscription after an ownership check.
func (s *subscriptionService) Unsubscribe(ctx context.Context, accountID, id uuid.UUID) error {
	sub, err := s.hookRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if sub == nil || sub.AccountID != accountID {
		return apperror.ErrSubscriptionNotFound()
	}

	if err := s.hookRepo.Delete(ctx, id); err != nil {
		return apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("subscription_id", id.String()).
		Msg("hook subscription removed")
	return nil
}

// List returns the account's subscriptions.
func (s *subscriptionService) List(ctx context.Context, accountID uuid.UUID) ([]domain.HookSubscription, error) {
	subs, err := s.hookRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return subs, nil
}

// Reactivate re-enables a destination the failure policy shut off. There is
// no automatic path back; only this explicit owner action flips the flag.
func (s *subscriptionService) Reactivate(ctx context.Context, kind domain.DestinationKind, id uuid.UUID) error {
	var err error
	switch kind {
	case domain.DestinationIntegration:
		err = s.integrationRepo.SetActive(ctx, id, true)
	case domain.DestinationWebhook:
		err = s.webhookRepo.SetActive(ctx, id, true)
	case domain.DestinationHook:
		err = s.hookRepo.SetActive(ctx, id, true)
	default:
		return apperror.Validation("unknown destination kind: " + string(kind))
	}
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("kind", string(kind)).
		Str("destination_id", id.String()).
		Msg("destination reactivated by owner")
	return nil
}
