package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/internal/middlewares"
	"github.com/onurcolak/future-message-service/internal/service"
	"github.com/onurcolak/future-message-service/pkg/response"
	"github.com/onurcolak/future-message-service/pkg/validator"
)

type MessageHandler struct {
	service *service.MessageService
}

func NewMessageHandler(service *service.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

type CreateMessageRequest struct {
	EntityType  string    `json:"entityType" validate:"required,oneof=lead contact leads contacts"`
	EntityID    int64     `json:"entityId" validate:"required,gt=0"`
	Text        string    `json:"text" validate:"required,notblank"`
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
}

type EditMessageRequest struct {
	Text        string    `json:"text" validate:"required,notblank"`
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
}

// CreateMessage godoc
// @Summary Schedule a message
// @Description Schedules a message for a lead or contact. The host fields are updated right after the record is saved.
// @Tags messages
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for messages"
// @Param x-actor-id header string true "Id of the user performing the action"
// @Param x-actor-name header string false "Display name of the user"
// @Param message body CreateMessageRequest true "Message to schedule"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages [post]
func (h *MessageHandler) CreateMessage(c echo.Context) error {
	var req CreateMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	actor, ok := middlewares.ActorFrom(c)
	if !ok {
		return response.BadRequestWithMessage(c, "missing "+middlewares.ActorIDHeader+" header")
	}

	entityType, _ := domain.ParseEntityType(req.EntityType)

	message, err := h.service.Create(c.Request().Context(), service.CreateInput{
		Entity:      domain.EntityRef{Type: entityType, ID: req.EntityID},
		Text:        req.Text,
		ScheduledAt: req.ScheduledAt,
		Actor:       actor,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Message scheduled successfully", message)
}

// ListMessages godoc
// @Summary List an entity's messages
// @Description Returns the scheduled messages of one lead or contact in creation order
// @Tags messages
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for messages"
// @Param entityType query string true "lead or contact"
// @Param entityId query int true "Entity id"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} response.PaginatedResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/messages [get]
func (h *MessageHandler) ListMessages(c echo.Context) error {
	ref, err := parseEntityRef(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	messages := h.service.ListForEntity(ref)
	total := len(messages)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return response.Paginated(c, messages[start:end], page, pageSize, int64(total))
}

// GetMessage godoc
// @Summary Get a message
// @Description Returns one scheduled message with its full audit log
// @Tags messages
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for messages"
// @Param id path string true "Message ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/messages/{id} [get]
func (h *MessageHandler) GetMessage(c echo.Context) error {
	message, err := h.service.Get(c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Ok(c, message)
}

// EditMessage godoc
// @Summary Edit a scheduled message
// @Description Replaces text and send time of a message that is still scheduled. Both values are always required.
// @Tags messages
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for messages"
// @Param x-actor-id header string true "Id of the user performing the action"
// @Param x-actor-name header string false "Display name of the user"
// @Param id path string true "Message ID"
// @Param message body EditMessageRequest true "New text and send time"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/{id} [put]
func (h *MessageHandler) EditMessage(c echo.Context) error {
	var req EditMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	actor, ok := middlewares.ActorFrom(c)
	if !ok {
		return response.BadRequestWithMessage(c, "missing "+middlewares.ActorIDHeader+" header")
	}

	message, err := h.service.Edit(c.Request().Context(), c.Param("id"), service.EditInput{
		Text:        req.Text,
		ScheduledAt: req.ScheduledAt,
		Actor:       actor,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OkWithMessage(c, "Message updated successfully", message)
}

// CancelMessage godoc
// @Summary Cancel a scheduled message
// @Description Cancels a message that has not been triggered yet. The record and its history are kept.
// @Tags messages
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for messages"
// @Param x-actor-id header string true "Id of the user performing the action"
// @Param x-actor-name header string false "Display name of the user"
// @Param id path string true "Message ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/{id} [delete]
func (h *MessageHandler) CancelMessage(c echo.Context) error {
	actor, ok := middlewares.ActorFrom(c)
	if !ok {
		return response.BadRequestWithMessage(c, "missing "+middlewares.ActorIDHeader+" header")
	}

	message, err := h.service.Cancel(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OkWithMessage(c, "Message cancelled successfully", message)
}

// GetStats godoc
// @Summary Get message statistics
// @Description Returns count of messages by status
// @Tags messages
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/messages/stats [get]
func (h *MessageHandler) GetStats(c echo.Context) error {
	return response.Ok(c, h.service.Stats())
}

// GetAuditTrail godoc
// @Summary Get an entity's audit trail
// @Description Returns the audit entries of all messages of one entity, newest first
// @Tags messages
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for messages"
// @Param entityType query string true "lead or contact"
// @Param entityId query int true "Entity id"
// @Param action query string false "created, edited, deleted, triggered, sent or failed"
// @Param user query string false "Case-insensitive substring of the actor name"
// @Param date query string false "Calendar day (YYYY-MM-DD, UTC)"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/messages/audit [get]
func (h *MessageHandler) GetAuditTrail(c echo.Context) error {
	ref, err := parseEntityRef(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var filter domain.AuditFilter

	if actionStr := c.QueryParam("action"); actionStr != "" {
		action, ok := domain.ParseAuditAction(actionStr)
		if !ok {
			return response.BadRequest(c, fmt.Errorf("unknown action %q", actionStr))
		}
		filter.Action = &action
	}

	filter.User = c.QueryParam("user")

	if dateStr := c.QueryParam("date"); dateStr != "" {
		date, err := time.Parse(time.DateOnly, dateStr)
		if err != nil {
			return response.BadRequest(c, fmt.Errorf("date must be formatted as YYYY-MM-DD"))
		}
		filter.Date = &date
	}

	return response.Ok(c, h.service.AuditTrail(ref, filter))
}

func parseEntityRef(c echo.Context) (domain.EntityRef, error) {
	entityType, ok := domain.ParseEntityType(c.QueryParam("entityType"))
	if !ok {
		return domain.EntityRef{}, fmt.Errorf("entityType must be lead or contact")
	}

	id, err := strconv.ParseInt(strings.TrimSpace(c.QueryParam("entityId")), 10, 64)
	if err != nil || id <= 0 {
		return domain.EntityRef{}, fmt.Errorf("entityId must be a positive integer")
	}

	return domain.EntityRef{Type: entityType, ID: id}, nil
}

func parsePaginationParams(c echo.Context) (int, int, error) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)

	pageStr := c.QueryParam("page")
	pageSizeStr := c.QueryParam("pageSize")

	page := defaultPage
	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
		page = p
	}

	pageSize := defaultPageSize
	if pageSizeStr != "" {
		ps, err := strconv.Atoi(pageSizeStr)
		if err != nil || ps <= 0 || ps > maxPageSize {
			return 0, 0, fmt.Errorf("pageSize must be between 1 and %d", maxPageSize)
		}

		pageSize = ps
	}

	return page, pageSize, nil
}
