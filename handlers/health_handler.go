package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/pkg/kommo"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type fieldChecker interface {
	CheckFields(ctx context.Context, entityType domain.EntityType) ([]kommo.FieldStatus, error)
}

// HealthHandler handles health checks.
type HealthHandler struct {
	store        pinger
	storeBackend string
	kommo        fieldChecker
	checkTimeout time.Duration
}

// NewHealthHandler takes the active persistence adapter and, when field sync
// is enabled, the Kommo client. Pass a nil kommo to report sync as disabled.
func NewHealthHandler(store pinger, storeBackend string, kommoClient fieldChecker) *HealthHandler {
	return &HealthHandler{
		store:        store,
		storeBackend: storeBackend,
		kommo:        kommoClient,
		checkTimeout: 3 * time.Second,
	}
}

// Health returns overall status and component statuses (store and Kommo).
// @Summary Health check
// @Description Returns overall status with persistence connectivity and Kommo custom field configuration
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.checkTimeout)
	defer cancel()

	overallStatus := "ok"

	storeStatus := "up"
	if h.store == nil {
		storeStatus = "down"
		overallStatus = "down"
	} else if err := h.store.Ping(ctx); err != nil {
		storeStatus = "down"
		overallStatus = "down"
	}

	kommoComponent := map[string]any{"status": "disabled"}
	if h.kommo != nil {
		status := "up"
		fields := map[string]any{}

		for _, entityType := range []domain.EntityType{domain.EntityLead, domain.EntityContact} {
			statuses, err := h.kommo.CheckFields(ctx, entityType)
			if err != nil {
				status = "down"
				fields[string(entityType)] = map[string]any{"error": err.Error()}
				continue
			}

			for _, s := range statuses {
				if !s.Configured && status == "up" {
					status = "misconfigured"
				}
			}
			fields[string(entityType)] = statuses
		}

		if status != "up" && overallStatus == "ok" {
			overallStatus = "degraded"
		}

		kommoComponent = map[string]any{
			"status": status,
			"fields": fields,
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"components": map[string]any{
			"store": map[string]any{
				"backend": h.storeBackend,
				"status":  storeStatus,
			},
			"kommo": kommoComponent,
		},
	})
}
