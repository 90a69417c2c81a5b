package handler

import (
	"time"

	"formpulse-relay/internal/adapter/http/dto"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/internal/service"
	"formpulse-relay/pkg/apperror"
	"formpulse-relay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler handles the webhook configuration surface.
type WebhookHandler struct {
	webhookRepo ports.WebhookRepository
	logRepo     ports.DeliveryLogRepository
	dispatcher  ports.DeliveryDispatcher
	subSvc      ports.SubscriptionService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(
	webhookRepo ports.WebhookRepository,
	logRepo ports.DeliveryLogRepository,
	dispatcher ports.DeliveryDispatcher,
	subSvc ports.SubscriptionService,
) *WebhookHandler {
	return &WebhookHandler{
		webhookRepo: webhookRepo,
		logRepo:     logRepo,
		dispatcher:  dispatcher,
		subSvc:      subSvc,
	}
}

// Create handles POST /api/webhooks.
func (h *WebhookHandler) Create(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	for _, event := range req.Events {
		if !domain.IsValidEvent(event) {
			response.Error(c, apperror.ErrInvalidEvent(event, domain.ValidEvents()))
			return
		}
	}

	secret, err := domain.GenerateSecret()
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	webhook := &domain.Webhook{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      req.Name,
		URL:       req.URL,
		Secret:    secret,
		Events:    req.Events,
		Headers:   req.Headers,
		Active:    true,
	}
	if err := h.webhookRepo.Create(c.Request.Context(), webhook); err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	// The secret is included exactly once, on creation.
	response.Created(c, webhookResponse(webhook, true))
}

// List handles GET /api/webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	webhooks, err := h.webhookRepo.ListByAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	items := make([]dto.WebhookResponse, 0, len(webhooks))
	for i := range webhooks {
		items = append(items, webhookResponse(&webhooks[i], false))
	}
	response.OK(c, items)
}

// Get handles GET /api/webhooks/:id.
func (h *WebhookHandler) Get(c *gin.Context) {
	webhook, ok := h.ownedWebhook(c)
	if !ok {
		return
	}
	response.OK(c, webhookResponse(webhook, false))
}

// Update handles PUT /api/webhooks/:id.
func (h *WebhookHandler) Update(c *gin.Context) {
	webhook, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if req.Name != nil {
		webhook.Name = *req.Name
	}
	if req.URL != nil {
		webhook.URL = *req.URL
	}
	if req.Events != nil {
		for _, event := range req.Events {
			if !domain.IsValidEvent(event) {
				response.Error(c, apperror.ErrInvalidEvent(event, domain.ValidEvents()))
				return
			}
		}
		webhook.Events = req.Events
	}
	if req.Headers != nil {
		webhook.Headers = req.Headers
	}
	if req.Active != nil {
		webhook.Active = *req.Active
	}

	if err := h.webhookRepo.Update(c.Request.Context(), webhook); err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	response.OK(c, webhookResponse(webhook, false))
}

// Delete handles DELETE /api/webhooks/:id.
func (h *WebhookHandler) Delete(c *gin.Context) {
	webhook, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	if err := h.webhookRepo.Delete(c.Request.Context(), webhook.ID); err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	response.OK(c, gin.H{"success": true})
}

// Test handles POST /api/webhooks/:id/test. It delivers a sample payload to
// the configured URL with real signing and logging.
func (h *WebhookHandler) Test(c *gin.Context) {
	webhook, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	event := &domain.SubmissionEvent{
		SubmissionID: uuid.New(),
		FormID:       uuid.New(),
		FormTitle:    "Test Form",
		FormPublicID: "test",
		CompletedAt:  time.Now().UTC(),
		Answers: []domain.Answer{
			{FieldID: "field_1", FieldLabel: "Name", FieldType: "SHORT_TEXT", Value: "Test User"},
		},
	}

	outcome := h.dispatcher.Deliver(c.Request.Context(), ports.DeliveryTarget{
		Kind:    domain.DestinationWebhook,
		ID:      webhook.ID,
		URL:     webhook.URL,
		Secret:  webhook.Secret,
		Headers: webhook.Headers,
		Event:   domain.EventSubmissionCreated,
		Payload: service.NewSubmissionEnvelope(domain.EventSubmissionCreated, event),
	})

	response.OK(c, dto.DeliveryOutcomeResponse{
		Success:    outcome.Success,
		StatusCode: outcome.StatusCode,
		Error:      outcome.Error,
	})
}

// RotateSecret handles POST /api/webhooks/:id/rotate-secret.
func (h *WebhookHandler) RotateSecret(c *gin.Context) {
	webhook, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	secret, err := domain.GenerateSecret()
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	webhook.Secret = secret

	if err := h.webhookRepo.Update(c.Request.Context(), webhook); err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	response.OK(c, webhookResponse(webhook, true))
}

// Reactivate handles POST /api/webhooks/:id/reactivate, the explicit owner
// action that re-enables a destination the failure policy shut off.
func (h *WebhookHandler) Reactivate(c *gin.Context) {
	webhook, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	if err := h.subSvc.Reactivate(c.Request.Context(), domain.DestinationWebhook, webhook.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}

// Logs handles GET /api/webhooks/:id/logs.
func (h *WebhookHandler) Logs(c *gin.Context) {
	webhook, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	logs, err := h.logRepo.ListByDestination(c.Request.Context(), domain.DestinationWebhook, webhook.ID, 50)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	items := make([]dto.DeliveryLogResponse, 0, len(logs))
	for _, l := range logs {
		item := dto.DeliveryLogResponse{
			ID:         l.ID.String(),
			Event:      l.Event,
			StatusCode: l.StatusCode,
			Success:    l.Success,
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		}
		if l.Error != nil {
			item.Error = *l.Error
		}
		items = append(items, item)
	}
	response.OK(c, items)
}

// ownedWebhook loads the path webhook and enforces ownership. On failure it
// writes the error response and returns false.
func (h *WebhookHandler) ownedWebhook(c *gin.Context) (*domain.Webhook, bool) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid webhook id"))
		return nil, false
	}

	webhook, err := h.webhookRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return nil, false
	}
	if webhook == nil || webhook.AccountID != accountID {
		response.Error(c, apperror.ErrWebhookNotFound())
		return nil, false
	}
	return webhook, true
}

func webhookResponse(w *domain.Webhook, includeSecret bool) dto.WebhookResponse {
	resp := dto.WebhookResponse{
		ID:        w.ID.String(),
		Name:      w.Name,
		URL:       w.URL,
		Events:    w.Events,
		Headers:   w.Headers,
		Active:    w.Active,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	}
	if includeSecret {
		resp.Secret = w.Secret
	}
	return resp
}
