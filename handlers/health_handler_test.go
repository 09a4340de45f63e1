package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/pkg/kommo"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeFieldChecker struct {
	statuses []kommo.FieldStatus
	err      error
}

func (f fakeFieldChecker) CheckFields(ctx context.Context, entityType domain.EntityType) ([]kommo.FieldStatus, error) {
	return f.statuses, f.err
}

type healthBody struct {
	Status     string `json:"status"`
	Components struct {
		Store struct {
			Backend string `json:"backend"`
			Status  string `json:"status"`
		} `json:"store"`
		Kommo struct {
			Status string `json:"status"`
		} `json:"kommo"`
	} `json:"components"`
}

func runHealth(t *testing.T, handler *HealthHandler) healthBody {
	t.Helper()

	e := echo.New()
	c, rec := newRequestContext(e, http.MethodGet, "/health", "")
	if err := handler.Health(c); err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	return body
}

func TestHealth_StoreUpKommoDisabled(t *testing.T) {
	body := runHealth(t, NewHealthHandler(fakePinger{}, "memory", nil))

	if body.Status != "ok" {
		t.Errorf("expected ok, got %s", body.Status)
	}
	if body.Components.Store.Backend != "memory" || body.Components.Store.Status != "up" {
		t.Errorf("unexpected store component %+v", body.Components.Store)
	}
	if body.Components.Kommo.Status != "disabled" {
		t.Errorf("expected kommo disabled, got %s", body.Components.Kommo.Status)
	}
}

func TestHealth_StoreDown(t *testing.T) {
	body := runHealth(t, NewHealthHandler(fakePinger{err: errors.New("refused")}, "mysql", nil))

	if body.Status != "down" || body.Components.Store.Status != "down" {
		t.Errorf("expected store down, got %+v", body)
	}
}

func TestHealth_KommoMissingFieldIsDegraded(t *testing.T) {
	checker := fakeFieldChecker{statuses: []kommo.FieldStatus{
		{Name: domain.FieldMessageText, FieldID: 1, Configured: true},
		{Name: domain.FieldStatus, FieldID: 0, Configured: false},
	}}

	body := runHealth(t, NewHealthHandler(fakePinger{}, "valkey", checker))

	if body.Status != "degraded" {
		t.Errorf("expected degraded, got %s", body.Status)
	}
	if body.Components.Kommo.Status != "misconfigured" {
		t.Errorf("expected misconfigured, got %s", body.Components.Kommo.Status)
	}
}

func TestHealth_KommoUnreachable(t *testing.T) {
	body := runHealth(t, NewHealthHandler(fakePinger{}, "mysql", fakeFieldChecker{err: errors.New("timeout")}))

	if body.Components.Kommo.Status != "down" {
		t.Errorf("expected kommo down, got %s", body.Components.Kommo.Status)
	}
	if body.Status != "degraded" {
		t.Errorf("expected degraded, got %s", body.Status)
	}
}
