package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/internal/service"
	"github.com/onurcolak/future-message-service/pkg/response"
	"github.com/onurcolak/future-message-service/pkg/validator"
)

// AutomationHandler is called back by the host automation once it has acted
// on a message it picked up from the "Para Enviar" status.
type AutomationHandler struct {
	service *service.MessageService
}

func NewAutomationHandler(service *service.MessageService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

type ReportOutcomeRequest struct {
	Status string `json:"status" validate:"required,oneof=sent failed"`
	Reason string `json:"reason,omitempty" validate:"required_if=Status failed,max=500"`
	Note   string `json:"note,omitempty" validate:"max=500"`
}

// ReportOutcome godoc
// @Summary Report a delivery outcome
// @Description Marks a triggered message as sent or failed. A reason is required for failures.
// @Tags automation
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for automation callbacks"
// @Param id path string true "Message ID"
// @Param outcome body ReportOutcomeRequest true "Outcome"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/automation/messages/{id}/outcome [post]
func (h *AutomationHandler) ReportOutcome(c echo.Context) error {
	var req ReportOutcomeRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	message, err := h.service.ReportOutcome(c.Request().Context(), c.Param("id"), domain.Outcome{
		Status: domain.MessageStatus(req.Status),
		Reason: req.Reason,
		Note:   req.Note,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OkWithMessage(c, "Outcome recorded", message)
}
