package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/handlers"
	"github.com/onurcolak/future-message-service/internal/middlewares"
	"github.com/onurcolak/future-message-service/internal/repository"
	"github.com/onurcolak/future-message-service/internal/scheduler"
	"github.com/onurcolak/future-message-service/internal/service"
	"github.com/onurcolak/future-message-service/pkg/validator"
)

const (
	messagesKey   = "messages-key"
	automationKey = "automation-key"
	schedulerKey  = "scheduler-key"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := &environments.Config{
		Auth: environments.AuthConfig{
			MessagesAPIKey:   messagesKey,
			AutomationAPIKey: automationKey,
			SchedulerAPIKey:  schedulerKey,
		},
	}

	repo := repository.NewMemoryRepository()
	svc := service.NewMessageService(repo, nil, service.Config{
		StoreKey:         "routes_test",
		MaxContentLength: 100,
	})
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	sched := scheduler.NewScheduler(svc, nil, time.Minute, 0)

	e := echo.New()
	e.Validator = validator.New()

	RegisterRoutes(e,
		handlers.NewHealthHandler(repo, "memory", nil),
		handlers.NewMessageHandler(svc),
		handlers.NewAutomationHandler(svc),
		handlers.NewSchedulerHandler(sched, context.Background(), cfg),
		cfg,
	)
	return e
}

func serve(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRoutes_GroupKeysAreIndependent(t *testing.T) {
	e := newTestServer(t)

	const outcome = `{"status":"sent"}`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		key    string
		want   int
	}{
		{name: "messages key on messages", method: http.MethodGet, path: "/api/v1/messages/stats", key: messagesKey, want: http.StatusOK},
		{name: "automation key on messages", method: http.MethodGet, path: "/api/v1/messages/stats", key: automationKey, want: http.StatusUnauthorized},
		{name: "scheduler key on messages", method: http.MethodGet, path: "/api/v1/messages/stats", key: schedulerKey, want: http.StatusUnauthorized},

		{name: "automation key on automation", method: http.MethodPost, path: "/api/v1/automation/messages/missing/outcome", body: outcome, key: automationKey, want: http.StatusNotFound},
		{name: "messages key on automation", method: http.MethodPost, path: "/api/v1/automation/messages/missing/outcome", body: outcome, key: messagesKey, want: http.StatusUnauthorized},
		{name: "scheduler key on automation", method: http.MethodPost, path: "/api/v1/automation/messages/missing/outcome", body: outcome, key: schedulerKey, want: http.StatusUnauthorized},

		{name: "scheduler key on scheduler", method: http.MethodGet, path: "/api/v1/scheduler/status", key: schedulerKey, want: http.StatusOK},
		{name: "messages key on scheduler", method: http.MethodGet, path: "/api/v1/scheduler/status", key: messagesKey, want: http.StatusUnauthorized},
		{name: "automation key on scheduler", method: http.MethodGet, path: "/api/v1/scheduler/status", key: automationKey, want: http.StatusUnauthorized},
		{name: "messages key on scheduler start", method: http.MethodPost, path: "/api/v1/scheduler/start", key: messagesKey, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.method, tt.path, tt.body, map[string]string{middlewares.APIKeyHeader: tt.key})

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegisterRoutes_KeyCheckedBeforeActor(t *testing.T) {
	e := newTestServer(t)

	const body = `{"entityType":"lead","entityId":1,"text":"Hello","scheduledAt":"2099-01-01T10:00:00Z"}`

	rec := serve(e, http.MethodPost, "/api/v1/messages", body, map[string]string{middlewares.APIKeyHeader: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected a bad key without actor to get 401, got %d", rec.Code)
	}

	rec = serve(e, http.MethodPost, "/api/v1/messages", body, map[string]string{middlewares.APIKeyHeader: messagesKey})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected a valid key without actor to get 400, got %d", rec.Code)
	}
}

func TestRegisterRoutes_HealthNeedsNoKey(t *testing.T) {
	e := newTestServer(t)

	rec := serve(e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}
