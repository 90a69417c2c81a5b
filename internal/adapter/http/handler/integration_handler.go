package handler

import (
	"formpulse-relay/internal/adapter/http/dto"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"
	"formpulse-relay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IntegrationHandler handles credential tests and container discovery for
// the configuration surface.
type IntegrationHandler struct {
	integrationSvc ports.IntegrationService
}

// NewIntegrationHandler creates a new IntegrationHandler.
func NewIntegrationHandler(integrationSvc ports.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{integrationSvc: integrationSvc}
}

// TestCredentials handles POST /api/integrations/test. Credentials arrive in
// the request and are never persisted here.
func (h *IntegrationHandler) TestCredentials(c *gin.Context) {
	var req dto.TestCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	integrationType := domain.IntegrationType(req.Type)
	if !integrationType.Valid() {
		response.Error(c, apperror.ErrUnknownProvider(req.Type))
		return
	}

	identity, err := h.integrationSvc.TestCredentials(c.Request.Context(), integrationType, req.Credentials)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.IdentityResponse{Detail: identity.Detail})
}

// Discover handles the container discovery endpoints:
// GET /api/integrations/:id/lists|databases|bases|pipelines. The stored
// integration's type selects the adapter; the path segment only names what
// the UI expects back.
func (h *IntegrationHandler) Discover(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid integration id"))
		return
	}

	containers, err := h.integrationSvc.DiscoverContainers(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ContainerResponse, 0, len(containers))
	for _, container := range containers {
		items = append(items, dto.ContainerResponse{
			ID:   container.ID,
			Name: container.Name,
			Kind: container.Kind,
		})
	}
	response.OK(c, items)
}
