package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
)

// --- In-Memory Integration Repo ---

type inMemoryIntegrationRepo struct {
	mu           sync.RWMutex
	integrations map[uuid.UUID]*domain.Integration
	links        []*domain.FormIntegration
}

func newInMemoryIntegrationRepo() *inMemoryIntegrationRepo {
	return &inMemoryIntegrationRepo{integrations: make(map[uuid.UUID]*domain.Integration)}
}

func (r *inMemoryIntegrationRepo) add(i *domain.Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrations[i.ID] = i
}

func (r *inMemoryIntegrationRepo) link(l *domain.FormIntegration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, l)
}

func (r *inMemoryIntegrationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.integrations[id]
	if !ok {
		return nil, nil
	}
	return i, nil
}

func (r *inMemoryIntegrationRepo) ListActiveByForm(ctx context.Context, formID uuid.UUID) ([]domain.FormIntegration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.FormIntegration
	for _, l := range r.links {
		if l.FormID != formID || !l.Active {
			continue
		}
		integ, ok := r.integrations[l.IntegrationID]
		if !ok || !integ.Active {
			continue
		}
		copied := *l
		copied.Integration = integ
		result = append(result, copied)
	}
	return result, nil
}

func (r *inMemoryIntegrationRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.integrations[id]
	if !ok {
		return fmt.Errorf("integration not found")
	}
	i.Active = active
	return nil
}

// --- In-Memory Webhook Repo ---

type inMemoryWebhookRepo struct {
	mu       sync.RWMutex
	webhooks map[uuid.UUID]*domain.Webhook
}

func newInMemoryWebhookRepo() *inMemoryWebhookRepo {
	return &inMemoryWebhookRepo{webhooks: make(map[uuid.UUID]*domain.Webhook)}
}

func (r *inMemoryWebhookRepo) Create(ctx context.Context, w *domain.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	copied := *w
	r.webhooks[w.ID] = &copied
	return nil
}

func (r *inMemoryWebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.webhooks[id]
	if !ok {
		return nil, nil
	}
	copied := *w
	return &copied, nil
}

func (r *inMemoryWebhookRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Webhook
	for _, w := range r.webhooks {
		if w.AccountID == accountID {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryWebhookRepo) ListActiveByEvent(ctx context.Context, accountID uuid.UUID, event string) ([]domain.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Webhook
	for _, w := range r.webhooks {
		if w.AccountID == accountID && w.Active && w.SubscribedTo(event) {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryWebhookRepo) Update(ctx context.Context, w *domain.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.webhooks[w.ID]; !ok {
		return fmt.Errorf("webhook not found")
	}
	w.UpdatedAt = time.Now()
	copied := *w
	r.webhooks[w.ID] = &copied
	return nil
}

func (r *inMemoryWebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.webhooks[id]; !ok {
		return fmt.Errorf("webhook not found")
	}
	delete(r.webhooks, id)
	return nil
}

func (r *inMemoryWebhookRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.webhooks[id]
	if !ok {
		return fmt.Errorf("webhook not found")
	}
	w.Active = active
	return nil
}

// --- In-Memory Hook Subscription Repo ---

type inMemoryHookRepo struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*domain.HookSubscription
}

func newInMemoryHookRepo() *inMemoryHookRepo {
	return &inMemoryHookRepo{subs: make(map[uuid.UUID]*domain.HookSubscription)}
}

func (r *inMemoryHookRepo) Create(ctx context.Context, sub *domain.HookSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.CreatedAt = time.Now()
	copied := *sub
	r.subs[sub.ID] = &copied
	return nil
}

func (r *inMemoryHookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.HookSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *inMemoryHookRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.HookSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.HookSubscription
	for _, s := range r.subs {
		if s.AccountID == accountID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryHookRepo) ListActiveByEvent(ctx context.Context, accountID uuid.UUID, event string) ([]domain.HookSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.HookSubscription
	for _, s := range r.subs {
		if s.AccountID == accountID && s.Active && s.Event == event {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryHookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return fmt.Errorf("subscription not found")
	}
	delete(r.subs, id)
	return nil
}

func (r *inMemoryHookRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return fmt.Errorf("subscription not found")
	}
	s.Active = active
	return nil
}

// --- In-Memory Delivery Log Repo ---

type inMemoryDeliveryLogRepo struct {
	mu   sync.RWMutex
	rows []domain.DeliveryLog
}

func newInMemoryDeliveryLogRepo() *inMemoryDeliveryLogRepo {
	return &inMemoryDeliveryLogRepo{}
}

func (r *inMemoryDeliveryLogRepo) Create(ctx context.Context, log *domain.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *log)
	return nil
}

func (r *inMemoryDeliveryLogRepo) ListByDestination(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, limit int) ([]domain.DeliveryLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.DeliveryLog
	for i := len(r.rows) - 1; i >= 0 && len(result) < limit; i-- {
		if r.rows[i].DestinationKind == kind && r.rows[i].DestinationID == id {
			result = append(result, r.rows[i])
		}
	}
	return result, nil
}

func (r *inMemoryDeliveryLogRepo) CountRecentFailures(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, window time.Duration) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := time.Now().Add(-window)
	count := 0
	for _, row := range r.rows {
		if row.DestinationKind == kind && row.DestinationID == id && !row.Success && row.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryDeliveryLogRepo) count(kind domain.DestinationKind, id uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, row := range r.rows {
		if row.DestinationKind == kind && row.DestinationID == id {
			count++
		}
	}
	return count
}

// --- In-Memory API Key Repo ---

type inMemoryAPIKeyRepo struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*domain.APIKey
}

func newInMemoryAPIKeyRepo() *inMemoryAPIKeyRepo {
	return &inMemoryAPIKeyRepo{keys: make(map[uuid.UUID]*domain.APIKey)}
}

func (r *inMemoryAPIKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.CreatedAt = time.Now()
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *inMemoryAPIKeyRepo) ListByPrefix(ctx context.Context, prefix string) ([]domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.APIKey
	for _, k := range r.keys {
		if k.Prefix == prefix {
			result = append(result, *k)
		}
	}
	return result, nil
}

func (r *inMemoryAPIKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return fmt.Errorf("api key not found")
	}
	now := time.Now()
	k.LastUsedAt = &now
	return nil
}
