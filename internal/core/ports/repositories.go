package ports

import (
	"context"
	"time"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
)

// IntegrationRepository defines persistence operations for provider
// integrations and their form links. Dispatch reads are always scoped to
// active rows.
type IntegrationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error)
	// ListActiveByForm returns active form links joined with their (active)
	// integrations, in creation order.
	ListActiveByForm(ctx context.Context, formID uuid.UUID) ([]domain.FormIntegration, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// WebhookRepository defines persistence operations for user-configured
// webhooks.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *domain.Webhook) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error)
	ListActiveByEvent(ctx context.Context, accountID uuid.UUID, event string) ([]domain.Webhook, error)
	Update(ctx context.Context, webhook *domain.Webhook) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// HookSubscriptionRepository defines persistence for REST-hook
// subscriptions registered by automation platforms.
type HookSubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.HookSubscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.HookSubscription, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.HookSubscription, error)
	ListActiveByEvent(ctx context.Context, accountID uuid.UUID, event string) ([]domain.HookSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// DeliveryLogRepository defines persistence for delivery attempt history.
// Rows are append-only.
type DeliveryLogRepository interface {
	Create(ctx context.Context, log *domain.DeliveryLog) error
	ListByDestination(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, limit int) ([]domain.DeliveryLog, error)
	// CountRecentFailures counts failed attempts for a destination within the
	// trailing window. The deactivation policy reads this durable count, not
	// an in-memory counter, so decisions survive restarts and are consistent
	// across concurrent dispatch workers.
	CountRecentFailures(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, window time.Duration) (int, error)
}

// APIKeyRepository defines persistence for automation API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	ListByPrefix(ctx context.Context, prefix string) ([]domain.APIKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}
