package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"formpulse-relay/config"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// dispatchService implements ports.DispatchService: the fan-out orchestrator
// that turns one completed submission into one delivery attempt per active
// destination.
type dispatchService struct {
	integrationRepo ports.IntegrationRepository
	webhookRepo     ports.WebhookRepository
	hookRepo        ports.HookSubscriptionRepository
	encSvc          ports.EncryptionService
	registry        ports.ProviderRegistry
	dispatcher      ports.DeliveryDispatcher
	cfg             config.DispatchConfig
	log             zerolog.Logger
}

// NewDispatchService creates the submission dispatch orchestrator.
func NewDispatchService(
	integrationRepo ports.IntegrationRepository,
	webhookRepo ports.WebhookRepository,
	hookRepo ports.HookSubscriptionRepository,
	encSvc ports.EncryptionService,
	registry ports.ProviderRegistry,
	dispatcher ports.DeliveryDispatcher,
	cfg config.DispatchConfig,
	log zerolog.Logger,
) ports.DispatchService {
	return &dispatchService{
		integrationRepo: integrationRepo,
		webhookRepo:     webhookRepo,
		hookRepo:        hookRepo,
		encSvc:          encSvc,
		registry:        registry,
		dispatcher:      dispatcher,
		cfg:             cfg,
		log:             log,
	}
}

// ProcessSubmission fans the event out to every active destination and
// returns exactly one entry per destination. It never returns an error:
// partial failure is a normal, reportable outcome and must not disturb the
// submission pipeline that triggered it.
func (s *dispatchService) ProcessSubmission(ctx context.Context, event *domain.SubmissionEvent, accountID uuid.UUID) *domain.AggregateResult {
	links := s.loadIntegrations(ctx, event.FormID)
	webhooks, hooks := s.loadWebhookDestinations(ctx, accountID, domain.EventSubmissionCreated)

	result := &domain.AggregateResult{
		ProviderResults: make([]domain.ProviderResult, len(links)),
		WebhookResults:  make([]domain.WebhookResult, len(webhooks)+len(hooks)),
	}

	pool := newWorkerPool(ctx, s.cfg.MaxConcurrency)

	for i, link := range links {
		i, link := i, link
		if !pool.run(func() {
			result.ProviderResults[i] = s.pushIntegration(ctx, link, event)
		}) {
			result.ProviderResults[i] = domain.ProviderResult{
				IntegrationID: link.IntegrationID,
				Type:          link.Integration.Type,
				Error:         "dispatch cancelled before attempt",
			}
		}
	}

	for i, w := range webhooks {
		i, w := i, w
		if !pool.run(func() {
			result.WebhookResults[i] = s.deliverWebhook(ctx, w, event)
		}) {
			result.WebhookResults[i] = cancelledResult(domain.DestinationWebhook, w.ID)
		}
	}

	offset := len(webhooks)
	for i, h := range hooks {
		i, h := i, h
		if !pool.run(func() {
			result.WebhookResults[offset+i] = s.deliverHook(ctx, h, event)
		}) {
			result.WebhookResults[offset+i] = cancelledResult(domain.DestinationHook, h.ID)
		}
	}

	pool.wait()

	s.log.Info().
		Str("submission_id", event.SubmissionID.String()).
		Str("form_id", event.FormID.String()).
		Int("integrations", len(links)).
		Int("webhooks", len(webhooks)).
		Int("hooks", len(hooks)).
		Msg("submission dispatched")

	return result
}

// TriggerFormEvent pushes a form lifecycle event (form.published,
// form.created) to the account's matching hook subscriptions.
func (s *dispatchService) TriggerFormEvent(ctx context.Context, accountID uuid.UUID, event string, form domain.FormRef) []domain.WebhookResult {
	hooks, err := s.hookRepo.ListActiveByEvent(ctx, accountID, event)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("failed to load hook subscriptions")
		return nil
	}

	results := make([]domain.WebhookResult, len(hooks))
	pool := newWorkerPool(ctx, s.cfg.MaxConcurrency)
	for i, h := range hooks {
		i, h := i, h
		if !pool.run(func() {
			outcome := s.dispatcher.Deliver(context.WithoutCancel(ctx), ports.DeliveryTarget{
				Kind:    domain.DestinationHook,
				ID:      h.ID,
				URL:     h.TargetURL,
				Secret:  h.Secret,
				Event:   event,
				Payload: NewFormEnvelope(event, form),
			})
			results[i] = webhookResult(domain.DestinationHook, h.ID, outcome)
		}) {
			results[i] = cancelledResult(domain.DestinationHook, h.ID)
		}
	}
	pool.wait()
	return results
}

func (s *dispatchService) loadIntegrations(ctx context.Context, formID uuid.UUID) []domain.FormIntegration {
	links, err := s.integrationRepo.ListActiveByForm(ctx, formID)
	if err != nil {
		s.log.Error().Err(err).Str("form_id", formID.String()).Msg("failed to load form integrations")
		return nil
	}
	return links
}

func (s *dispatchService) loadWebhookDestinations(ctx context.Context, accountID uuid.UUID, event string) ([]domain.Webhook, []domain.HookSubscription) {
	webhooks, err := s.webhookRepo.ListActiveByEvent(ctx, accountID, event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load webhooks")
	}
	hooks, err := s.hookRepo.ListActiveByEvent(ctx, accountID, event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load hook subscriptions")
	}
	return webhooks, hooks
}

// pushIntegration runs one provider push as an isolated unit: panics and
// errors become a per-destination failure, never an escaping error.
func (s *dispatchService) pushIntegration(ctx context.Context, link domain.FormIntegration, event *domain.SubmissionEvent) (result domain.ProviderResult) {
	integ := link.Integration
	result = domain.ProviderResult{IntegrationID: integ.ID, Type: integ.Type}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("provider adapter panic: %v", r)
			s.log.Error().
				Str("integration_id", integ.ID.String()).
				Str("type", string(integ.Type)).
				Interface("panic", r).
				Msg("provider push panicked")
			s.recordProviderAttempt(ctx, integ.ID, event, false, result.Error)
		}
	}()

	adapter, err := s.registry.Get(integ.Type)
	if err != nil {
		result.Error = err.Error()
		s.recordProviderAttempt(ctx, integ.ID, event, false, result.Error)
		return result
	}

	creds, err := s.decryptCredentials(integ.CredentialsEnc)
	if err != nil {
		result.Error = err.Error()
		s.recordProviderAttempt(ctx, integ.ID, event, false, result.Error)
		return result
	}

	// Detached so an already-started push finishes and leaves its log row
	// even when the dispatch context is cancelled.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WebhookTimeout)
	defer cancel()

	push, err := adapter.Push(pushCtx, creds, link.Settings, event)
	if err != nil {
		result.Error = err.Error()
		s.recordProviderAttempt(ctx, integ.ID, event, false, result.Error)
		return result
	}

	result.Success = true
	if push != nil {
		result.Detail = push.Detail
		if result.Detail == "" {
			result.Detail = push.RecordID
		}
	}
	s.recordProviderAttempt(ctx, integ.ID, event, true, "")
	return result
}

func (s *dispatchService) recordProviderAttempt(ctx context.Context, integrationID uuid.UUID, event *domain.SubmissionEvent, success bool, errMsg string) {
	payload, _ := json.Marshal(event.Data())
	s.dispatcher.RecordAttempt(ctx, ports.AttemptRecord{
		Kind:    domain.DestinationIntegration,
		ID:      integrationID,
		Event:   domain.EventSubmissionCreated,
		Payload: payload,
		Success: success,
		Error:   errMsg,
	})
}

func (s *dispatchService) deliverWebhook(ctx context.Context, w domain.Webhook, event *domain.SubmissionEvent) domain.WebhookResult {
	outcome := s.dispatcher.Deliver(context.WithoutCancel(ctx), ports.DeliveryTarget{
		Kind:    domain.DestinationWebhook,
		ID:      w.ID,
		URL:     w.URL,
		Secret:  w.Secret,
		Headers: w.Headers,
		Event:   domain.EventSubmissionCreated,
		Payload: NewSubmissionEnvelope(domain.EventSubmissionCreated, event),
	})
	return webhookResult(domain.DestinationWebhook, w.ID, outcome)
}

func (s *dispatchService) deliverHook(ctx context.Context, h domain.HookSubscription, event *domain.SubmissionEvent) domain.WebhookResult {
	outcome := s.dispatcher.Deliver(context.WithoutCancel(ctx), ports.DeliveryTarget{
		Kind:    domain.DestinationHook,
		ID:      h.ID,
		URL:     h.TargetURL,
		Secret:  h.Secret,
		Event:   domain.EventSubmissionCreated,
		Payload: NewHookEnvelope(domain.EventSubmissionCreated, event),
	})
	return webhookResult(domain.DestinationHook, h.ID, outcome)
}

func (s *dispatchService) decryptCredentials(enc string) (domain.Credentials, error) {
	plaintext, err := s.encSvc.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}
	var creds domain.Credentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return creds, nil
}

func webhookResult(kind domain.DestinationKind, id uuid.UUID, outcome ports.DeliveryOutcome) domain.WebhookResult {
	return domain.WebhookResult{
		Kind:          kind,
		DestinationID: id,
		Success:       outcome.Success,
		StatusCode:    outcome.StatusCode,
		Error:         outcome.Error,
		Deactivated:   outcome.Deactivated,
	}
}

func cancelledResult(kind domain.DestinationKind, id uuid.UUID) domain.WebhookResult {
	return domain.WebhookResult{
		Kind:          kind,
		DestinationID: id,
		Error:         "dispatch cancelled before attempt",
	}
}

// workerPool bounds dispatch concurrency. run blocks for a slot and reports
// false once the context is cancelled; started units always finish.
type workerPool struct {
	ctx context.Context
	sem chan struct{}
	wg  sync.WaitGroup
}

func newWorkerPool(ctx context.Context, size int) *workerPool {
	if size < 1 {
		size = 1
	}
	return &workerPool{ctx: ctx, sem: make(chan struct{}, size)}
}

func (p *workerPool) run(fn func()) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.sem <- struct{}{}:
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn()
	}()
	return true
}

func (p *workerPool) wait() {
	p.wg.Wait()
}
