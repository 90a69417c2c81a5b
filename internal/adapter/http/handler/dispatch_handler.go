package handler

import (
	"time"

	"formpulse-relay/internal/adapter/http/dto"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"
	"formpulse-relay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DispatchHandler exposes the engine's internal triggers. The submission
// pipeline calls these after persisting a completed submission; they are
// mounted off the public API groups and meant for trusted callers only.
type DispatchHandler struct {
	dispatchSvc ports.DispatchService
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(dispatchSvc ports.DispatchService) *DispatchHandler {
	return &DispatchHandler{dispatchSvc: dispatchSvc}
}

// DispatchSubmission handles POST /internal/dispatch/submission. The
// aggregate result is returned whole; partial failure is a 200.
func (h *DispatchHandler) DispatchSubmission(c *gin.Context) {
	var req dto.DispatchSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	completedAt, err := time.Parse(time.RFC3339, req.CompletedAt)
	if err != nil {
		response.Error(c, apperror.Validation("completed_at must be RFC 3339"))
		return
	}

	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domain.Answer{
			FieldID:    a.FieldID,
			FieldLabel: a.FieldLabel,
			FieldType:  a.FieldType,
			Value:      a.Value,
		})
	}

	event := &domain.SubmissionEvent{
		SubmissionID: uuid.MustParse(req.SubmissionID),
		FormID:       uuid.MustParse(req.FormID),
		FormTitle:    req.FormTitle,
		FormPublicID: req.FormPublicID,
		Answers:      answers,
		CompletedAt:  completedAt,
	}

	result := h.dispatchSvc.ProcessSubmission(c.Request.Context(), event, uuid.MustParse(req.AccountID))
	response.OK(c, result)
}

// TriggerFormEvent handles POST /internal/dispatch/form-event.
func (h *DispatchHandler) TriggerFormEvent(c *gin.Context) {
	var req dto.FormEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if !domain.IsValidEvent(req.Event) {
		response.Error(c, apperror.ErrInvalidEvent(req.Event, domain.ValidEvents()))
		return
	}

	results := h.dispatchSvc.TriggerFormEvent(c.Request.Context(), uuid.MustParse(req.AccountID), req.Event, domain.FormRef{
		ID:       req.FormID,
		Title:    req.FormTitle,
		PublicID: req.FormPublicID,
	})
	response.OK(c, results)
}
