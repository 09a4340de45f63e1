package routes

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/handlers"
	"github.com/onurcolak/future-message-service/internal/middlewares"
)

// RegisterRoutes registers all API routes with middleware. Each group has its
// own API key so the UI, the host automation and operators can be rotated
// independently.
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	messageHandler *handlers.MessageHandler,
	automationHandler *handlers.AutomationHandler,
	schedulerHandler *handlers.SchedulerHandler,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/api/v1")

	messages := v1.Group("/messages",
		middlewares.APIKeyAuth(cfg.Auth.MessagesAPIKey),
		middlewares.RequireActor(),
	)

	messages.POST("", messageHandler.CreateMessage)
	messages.GET("", messageHandler.ListMessages)
	messages.GET("/stats", messageHandler.GetStats)
	messages.GET("/audit", messageHandler.GetAuditTrail)
	messages.GET("/:id", messageHandler.GetMessage)
	messages.PUT("/:id", messageHandler.EditMessage)
	messages.DELETE("/:id", messageHandler.CancelMessage)

	automation := v1.Group("/automation", middlewares.APIKeyAuth(cfg.Auth.AutomationAPIKey))

	automation.POST("/messages/:id/outcome", automationHandler.ReportOutcome)

	schedulerGroup := v1.Group("/scheduler", middlewares.APIKeyAuth(cfg.Auth.SchedulerAPIKey))

	schedulerGroup.POST("/start", schedulerHandler.StartScheduler)
	schedulerGroup.POST("/stop", schedulerHandler.StopScheduler)
	schedulerGroup.GET("/status", schedulerHandler.GetSchedulerStatus)
}
