package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/internal/scheduler"
	"github.com/onurcolak/future-message-service/pkg/response"
	"github.com/onurcolak/future-message-service/pkg/validator"
)

type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	ctx       context.Context
	config    *environments.Config
}

type StartSchedulerRequest struct {
	IntervalSeconds *int `json:"intervalSeconds,omitempty" validate:"omitempty,min=1,max=86400"`
	AlertThreshold  *int `json:"alertThreshold,omitempty" validate:"omitempty,min=0"`
}

// NewSchedulerHandler keeps the application context so a scheduler started
// over HTTP outlives the request that started it.
func NewSchedulerHandler(
	sched *scheduler.Scheduler,
	ctx context.Context,
	cfg *environments.Config,
) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: sched,
		ctx:       ctx,
		config:    cfg,
	}
}

// StartScheduler godoc
// @Summary Start the due-check scheduler
// @Description Starts the periodic due check with optional interval and alert threshold
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for scheduler"
// @Param request body StartSchedulerRequest false "Scheduler parameters (optional)"
// @Success 200 {object} response.SuccessResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/start [post]
func (h *SchedulerHandler) StartScheduler(c echo.Context) error {
	if h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already running", h.scheduler.GetStatus())
	}

	var req StartSchedulerRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	intervalSeconds := int(h.config.Scheduler.Interval.Seconds())
	if req.IntervalSeconds != nil {
		intervalSeconds = *req.IntervalSeconds
	}

	alertThreshold := h.config.Alert.IterationCount
	if req.AlertThreshold != nil {
		alertThreshold = *req.AlertThreshold
	}

	if err := h.scheduler.StartWithParams(h.ctx, intervalSeconds, alertThreshold); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler started successfully", h.scheduler.GetStatus())
}

// StopScheduler godoc
// @Summary Stop the due-check scheduler
// @Description Stops the periodic due check. Messages keep their status until it is started again.
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for scheduler"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/stop [post]
func (h *SchedulerHandler) StopScheduler(c echo.Context) error {
	if !h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already stopped", h.scheduler.GetStatus())
	}

	if err := h.scheduler.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler stopped successfully", h.scheduler.GetStatus())
}

// GetSchedulerStatus godoc
// @Summary Get scheduler status
// @Description Returns run counters, sync failures and alert state of the scheduler
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-mf-auth-key header string true "API key for scheduler"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/scheduler/status [get]
func (h *SchedulerHandler) GetSchedulerStatus(c echo.Context) error {
	return response.Ok(c, h.scheduler.GetStatus())
}
