package ports

import (
	"context"
	"time"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption of credential
// bundles.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of delivery
// payloads.
type SignatureService interface {
	// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// HashService handles one-way hashing of API keys (argon2id).
type HashService interface {
	Hash(value string) (string, error)
	Verify(value string, hash string) (bool, error)
}

// TokenService handles JWT session tokens for the configuration surface.
type TokenService interface {
	Generate(accountID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Email     string
}

// APIKeyService issues and authenticates automation API keys.
type APIKeyService interface {
	// Generate creates a key for the account and returns the plaintext key,
	// shown exactly once.
	Generate(ctx context.Context, accountID uuid.UUID, name string) (string, error)
	// Authenticate resolves a presented key to its owning account.
	Authenticate(ctx context.Context, key string) (uuid.UUID, error)
}

// SchemaCache caches provider-side schemas (Notion databases, Airtable
// tables) between dispatches.
type SchemaCache interface {
	// Get returns the cached value, or nil when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Provider adapter contract ---

// ProviderAdapter is the uniform capability contract every third-party
// integration implements. Adapters receive only the decrypted credential
// bundle for the single call, never a handle to any credential store.
type ProviderAdapter interface {
	Type() domain.IntegrationType
	// TestConnection verifies credentials and returns provider identity info.
	TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error)
	// Push delivers one submission to the provider. Failures are returned as
	// errors and must never panic across this boundary.
	Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error)
}

// ContainerDiscoverer is implemented by adapters that can enumerate push
// targets (mailing lists, databases, bases, pipelines) for the
// configuration UI. Discovery is never used on the dispatch path.
type ContainerDiscoverer interface {
	DiscoverContainers(ctx context.Context, creds domain.Credentials) ([]domain.Container, error)
}

// ProviderRegistry resolves an adapter for an integration type.
type ProviderRegistry interface {
	Get(t domain.IntegrationType) (ProviderAdapter, error)
}

// --- Delivery dispatcher ---

// DeliveryTarget is one signed-POST destination for the dispatcher.
type DeliveryTarget struct {
	Kind    domain.DestinationKind
	ID      uuid.UUID
	URL     string
	Secret  string
	Headers map[string]string // destination-specific extras; never override required headers
	Event   string
	Payload interface{}
}

// DeliveryOutcome classifies one attempt.
type DeliveryOutcome struct {
	Success     bool
	StatusCode  *int
	Error       string
	Deactivated bool // the failure policy shut the destination off after this attempt
}

// AttemptRecord captures a provider-push attempt for the shared delivery
// log and failure policy.
type AttemptRecord struct {
	Kind       domain.DestinationKind
	ID         uuid.UUID
	Event      string
	Payload    []byte
	StatusCode *int
	Success    bool
	Error      string
}

// DeliveryDispatcher signs, posts, classifies, and logs deliveries, and owns
// the failure-count deactivation policy.
type DeliveryDispatcher interface {
	Deliver(ctx context.Context, target DeliveryTarget) DeliveryOutcome
	// RecordAttempt appends a log row for an attempt made outside the
	// dispatcher's own transport (provider pushes) and applies the failure
	// policy. Returns true when the destination was deactivated.
	RecordAttempt(ctx context.Context, attempt AttemptRecord) bool
}

// --- Engine services ---

// SubscriptionService manages REST-hook subscriptions and destination
// reactivation.
type SubscriptionService interface {
	Subscribe(ctx context.Context, accountID uuid.UUID, event, targetURL string) (*domain.HookSubscription, error)
	Unsubscribe(ctx context.Context, accountID, id uuid.UUID) error
	List(ctx context.Context, accountID uuid.UUID) ([]domain.HookSubscription, error)
	// Reactivate re-enables a destination the failure policy shut off.
	// Only ever triggered by explicit owner action.
	Reactivate(ctx context.Context, kind domain.DestinationKind, id uuid.UUID) error
}

// DispatchService is the orchestrator: fans one completed submission out to
// every active destination and aggregates per-destination results.
type DispatchService interface {
	// ProcessSubmission never returns an error: partial failure is a normal,
	// reportable outcome and the triggering pipeline must not be affected.
	ProcessSubmission(ctx context.Context, event *domain.SubmissionEvent, accountID uuid.UUID) *domain.AggregateResult
	// TriggerFormEvent pushes a form lifecycle event to hook subscriptions.
	TriggerFormEvent(ctx context.Context, accountID uuid.UUID, event string, form domain.FormRef) []domain.WebhookResult
}

// IntegrationService backs the configuration UI: credential tests and
// container discovery.
type IntegrationService interface {
	TestCredentials(ctx context.Context, t domain.IntegrationType, creds domain.Credentials) (*domain.ProviderIdentity, error)
	DiscoverContainers(ctx context.Context, integrationID uuid.UUID) ([]domain.Container, error)
}
