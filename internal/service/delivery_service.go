package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"formpulse-relay/config"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Required delivery headers. Custom per-destination headers never override
// these two.
const (
	HeaderSignature = "X-FormPulse-Signature"
	HeaderEvent     = "X-FormPulse-Event"
)

// SubmissionBody is the submission section of the delivery envelope.
// Answers is populated only for hook subscription payloads.
type SubmissionBody struct {
	ID          string                 `json:"id"`
	Data        map[string]interface{} `json:"data"`
	Answers     []domain.Answer        `json:"answers,omitempty"`
	CompletedAt time.Time              `json:"completedAt"`
}

// Envelope is the JSON body POSTed to webhooks and hook subscriptions.
type Envelope struct {
	Event      string          `json:"event"`
	Timestamp  time.Time       `json:"timestamp"`
	Form       domain.FormRef  `json:"form"`
	Submission *SubmissionBody `json:"submission,omitempty"`
}

// NewSubmissionEnvelope builds the webhook envelope for a completed
// submission.
func NewSubmissionEnvelope(event string, ev *domain.SubmissionEvent) Envelope {
	return Envelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Form:      ev.FormRef(),
		Submission: &SubmissionBody{
			ID:          ev.SubmissionID.String(),
			Data:        ev.Data(),
			CompletedAt: ev.CompletedAt,
		},
	}
}

// NewHookEnvelope builds the hook subscription payload: the webhook envelope
// plus the flattened answer tuples automation platforms map fields from.
func NewHookEnvelope(event string, ev *domain.SubmissionEvent) Envelope {
	env := NewSubmissionEnvelope(event, ev)
	env.Submission.Answers = ev.Answers
	return env
}

// NewFormEnvelope builds the payload for form lifecycle events, which carry
// no submission.
func NewFormEnvelope(event string, form domain.FormRef) Envelope {
	return Envelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Form:      form,
	}
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// deliveryService implements ports.DeliveryDispatcher. It owns the whole
// attempt lifecycle: sign, POST, classify, append the log row, and apply the
// failure-count deactivation policy. Provider pushes reuse the log and
// policy half through RecordAttempt.
type deliveryService struct {
	logRepo         ports.DeliveryLogRepository
	integrationRepo ports.IntegrationRepository
	webhookRepo     ports.WebhookRepository
	hookRepo        ports.HookSubscriptionRepository
	sigSvc          ports.SignatureService
	httpClient      HTTPClient
	cfg             config.DispatchConfig
	log             zerolog.Logger
}

// NewDeliveryService creates the delivery dispatcher.
func NewDeliveryService(
	logRepo ports.DeliveryLogRepository,
	integrationRepo ports.IntegrationRepository,
	webhookRepo ports.WebhookRepository,
	hookRepo ports.HookSubscriptionRepository,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	cfg config.DispatchConfig,
	log zerolog.Logger,
) ports.DeliveryDispatcher {
	return &deliveryService{
		logRepo:         logRepo,
		integrationRepo: integrationRepo,
		webhookRepo:     webhookRepo,
		hookRepo:        hookRepo,
		sigSvc:          sigSvc,
		httpClient:      httpClient,
		cfg:             cfg,
		log:             log,
	}
}

// Deliver signs and POSTs one payload to one destination. The signature is
// computed over the exact marshaled bytes that go on the wire, so receivers
// can verify against the raw body.
func (s *deliveryService) Deliver(ctx context.Context, target ports.DeliveryTarget) ports.DeliveryOutcome {
	payload, err := json.Marshal(target.Payload)
	if err != nil {
		outcome := ports.DeliveryOutcome{Error: fmt.Sprintf("encoding payload: %v", err)}
		outcome.Deactivated = s.record(ctx, target.Kind, target.ID, target.Event, nil, nil, false, outcome.Error)
		return outcome
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target.URL, bytes.NewReader(payload))
	if err != nil {
		outcome := ports.DeliveryOutcome{Error: fmt.Sprintf("building request: %v", err)}
		outcome.Deactivated = s.record(ctx, target.Kind, target.ID, target.Event, payload, nil, false, outcome.Error)
		return outcome
	}

	// Custom headers first, required headers after: the required two always
	// win.
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, s.sigSvc.Sign(target.Secret, payload))
	req.Header.Set(HeaderEvent, target.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		outcome := ports.DeliveryOutcome{Error: err.Error()}
		outcome.Deactivated = s.record(ctx, target.Kind, target.ID, target.Event, payload, nil, false, outcome.Error)
		s.log.Warn().Err(err).
			Str("kind", string(target.Kind)).
			Str("destination_id", target.ID.String()).
			Msg("delivery transport failure")
		return outcome
	}
	resp.Body.Close()

	status := resp.StatusCode
	outcome := ports.DeliveryOutcome{
		Success:    status >= 200 && status < 300,
		StatusCode: &status,
	}
	if !outcome.Success {
		outcome.Error = fmt.Sprintf("destination returned status %d", status)
	}
	outcome.Deactivated = s.record(ctx, target.Kind, target.ID, target.Event, payload, &status, outcome.Success, outcome.Error)

	s.log.Debug().
		Str("kind", string(target.Kind)).
		Str("destination_id", target.ID.String()).
		Int("status", status).
		Bool("success", outcome.Success).
		Msg("delivery attempt finished")

	return outcome
}

// RecordAttempt appends a log row for a provider push made outside the
// dispatcher's own transport and applies the failure policy. Returns true
// when the destination was deactivated.
func (s *deliveryService) RecordAttempt(ctx context.Context, attempt ports.AttemptRecord) bool {
	return s.record(ctx, attempt.Kind, attempt.ID, attempt.Event, attempt.Payload, attempt.StatusCode, attempt.Success, attempt.Error)
}

// record writes the attempt row and applies the deactivation policy. It runs
// on a detached context so a cancelled dispatch still leaves its history
// row; every attempt produces exactly one row.
func (s *deliveryService) record(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, event string, payload []byte, statusCode *int, success bool, errMsg string) bool {
	detached := context.WithoutCancel(ctx)

	row := &domain.DeliveryLog{
		ID:              uuid.New(),
		DestinationKind: kind,
		DestinationID:   id,
		Event:           event,
		Payload:         payload,
		StatusCode:      statusCode,
		Success:         success,
		CreatedAt:       time.Now(),
	}
	if errMsg != "" {
		row.Error = &errMsg
	}
	if err := s.logRepo.Create(detached, row); err != nil {
		s.log.Error().Err(err).
			Str("kind", string(kind)).
			Str("destination_id", id.String()).
			Msg("failed to write delivery log")
	}

	if success {
		return false
	}

	count, err := s.logRepo.CountRecentFailures(detached, kind, id, s.cfg.FailureWindow)
	if err != nil {
		s.log.Error().Err(err).
			Str("kind", string(kind)).
			Str("destination_id", id.String()).
			Msg("failed to count recent failures")
		return false
	}
	if count < s.cfg.FailureThreshold {
		return false
	}

	if err := s.setActive(detached, kind, id, false); err != nil {
		s.log.Error().Err(err).
			Str("kind", string(kind)).
			Str("destination_id", id.String()).
			Msg("failed to deactivate destination")
		return false
	}

	s.log.Warn().
		Str("kind", string(kind)).
		Str("destination_id", id.String()).
		Int("failures", count).
		Dur("window", s.cfg.FailureWindow).
		Msg("destination deactivated after repeated failures")
	return true
}

func (s *deliveryService) setActive(ctx context.Context, kind domain.DestinationKind, id uuid.UUID, active bool) error {
	switch kind {
	case domain.DestinationIntegration:
		return s.integrationRepo.SetActive(ctx, id, active)
	case domain.DestinationWebhook:
		return s.webhookRepo.SetActive(ctx, id, active)
	case domain.DestinationHook:
		return s.hookRepo.SetActive(ctx, id, active)
	}
	return fmt.Errorf("unknown destination kind: %s", kind)
}
