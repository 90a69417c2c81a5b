package handler

import (
	"net/http"
	"time"

	"formpulse-relay/internal/adapter/http/dto"
	"formpulse-relay/internal/adapter/http/middleware"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/internal/service"
	"formpulse-relay/pkg/apperror"
	"formpulse-relay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HooksHandler handles the REST-hook surface automation platforms call.
type HooksHandler struct {
	subSvc ports.SubscriptionService
}

// NewHooksHandler creates a new HooksHandler.
func NewHooksHandler(subSvc ports.SubscriptionService) *HooksHandler {
	return &HooksHandler{subSvc: subSvc}
}

// Me handles GET /api/zapier/me, the platform's auth test.
func (h *HooksHandler) Me(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}
	response.OK(c, dto.MeResponse{AccountID: accountID.String()})
}

// Subscribe handles POST /api/zapier/hooks/subscribe.
func (h *HooksHandler) Subscribe(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	var req dto.SubscribeHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, err := h.subSvc.Subscribe(c.Request.Context(), accountID, req.Event, req.HookURL)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.SubscribeHookResponse{
		ID:    sub.ID.String(),
		Event: sub.Event,
	})
}

// Unsubscribe handles DELETE /api/zapier/hooks/:id.
func (h *HooksHandler) Unsubscribe(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid subscription id"))
		return
	}

	if err := h.subSvc.Unsubscribe(c.Request.Context(), accountID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}

// List handles GET /api/zapier/hooks.
func (h *HooksHandler) List(c *gin.Context) {
	accountID, ok := accountFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	subs, err := h.subSvc.List(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.HookSubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		items = append(items, dto.HookSubscriptionResponse{
			ID:        s.ID.String(),
			Event:     s.Event,
			TargetURL: s.TargetURL,
			Active:    s.Active,
			CreatedAt: s.CreatedAt.Format(time.RFC3339),
		})
	}
	response.OK(c, items)
}

// SampleSubmission handles GET /api/zapier/samples/submission. The platform
// shows this payload to users wiring up a trigger before real data exists.
func (h *HooksHandler) SampleSubmission(c *gin.Context) {
	event := &domain.SubmissionEvent{
		SubmissionID: uuid.MustParse("3c6d2b5e-8c1a-4f2e-9d4b-1a2b3c4d5e6f"),
		FormID:       uuid.MustParse("9f8e7d6c-5b4a-4321-8765-0fedcba98765"),
		FormTitle:    "Contact Form",
		FormPublicID: "abc123xyz",
		CompletedAt:  time.Now().UTC(),
		Answers: []domain.Answer{
			{FieldID: "field_1", FieldLabel: "Name", FieldType: "SHORT_TEXT", Value: "John Doe"},
			{FieldID: "field_2", FieldLabel: "Email", FieldType: "EMAIL", Value: "john@example.com"},
			{FieldID: "field_3", FieldLabel: "Message", FieldType: "LONG_TEXT", Value: "Hello, this is a test message!"},
		},
	}

	c.JSON(http.StatusOK, []service.Envelope{
		service.NewHookEnvelope(domain.EventSubmissionCreated, event),
	})
}

// SampleForm handles GET /api/zapier/samples/form.
func (h *HooksHandler) SampleForm(c *gin.Context) {
	form := domain.FormRef{
		ID:       "9f8e7d6c-5b4a-4321-8765-0fedcba98765",
		Title:    "Contact Form",
		PublicID: "abc123xyz",
	}

	c.JSON(http.StatusOK, []service.Envelope{
		service.NewFormEnvelope(domain.EventFormCreated, form),
	})
}

// accountFromContext reads the authenticated account set by the auth
// middleware.
func accountFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
