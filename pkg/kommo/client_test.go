package kommo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/internal/domain"
)

func newTestConfig(url string) environments.KommoConfig {
	return environments.KommoConfig{
		BaseURL:     url,
		AccessToken: "token-123",
		Timeout:     2 * time.Second,
		RatePerSec:  100,
		Fields: environments.KommoFieldIDs{
			Text:     101,
			DateTime: 102,
			Status:   103,
		},
	}
}

func TestUpdateFields_SendsPatchWithFieldIDs(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAuth   string
		gotBody   updateEntityRequest
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))

	err := client.UpdateFields(context.Background(), domain.EntityLead, 42, map[string]any{
		domain.FieldMessageText: "Olá",
		domain.FieldScheduledAt: int64(1721900000),
		domain.FieldStatus:      "Agendada",
	})
	if err != nil {
		t.Fatalf("UpdateFields returned error: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/api/v4/leads/42" {
		t.Errorf("expected path /api/v4/leads/42, got %s", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}

	if len(gotBody.CustomFieldsValues) != 3 {
		t.Fatalf("expected 3 custom field values, got %d", len(gotBody.CustomFieldsValues))
	}

	byID := map[int64]any{}
	for _, f := range gotBody.CustomFieldsValues {
		if len(f.Values) != 1 {
			t.Fatalf("expected exactly one value for field %d, got %d", f.FieldID, len(f.Values))
		}
		byID[f.FieldID] = f.Values[0].Value
	}

	if byID[101] != "Olá" {
		t.Errorf("expected text field 101 = Olá, got %v", byID[101])
	}
	// JSON numbers decode as float64.
	if byID[102] != float64(1721900000) {
		t.Errorf("expected datetime field 102 = 1721900000, got %v", byID[102])
	}
	if byID[103] != "Agendada" {
		t.Errorf("expected status field 103 = Agendada, got %v", byID[103])
	}
}

func TestUpdateFields_ContactPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))

	if err := client.UpdateFields(context.Background(), domain.EntityContact, 7, map[string]any{domain.FieldStatus: "Cancelada"}); err != nil {
		t.Fatalf("UpdateFields returned error: %v", err)
	}
	if gotPath != "/api/v4/contacts/7" {
		t.Errorf("expected path /api/v4/contacts/7, got %s", gotPath)
	}
}

func TestUpdateFields_ErrorStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"title":"Bad Request"}`))
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))

	err := client.UpdateFields(context.Background(), domain.EntityLead, 1, map[string]any{domain.FieldStatus: "Agendada"})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestUpdateFields_UnconfiguredFieldFailsWithoutRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	cfg := newTestConfig(server.URL)
	cfg.Fields.Status = 0
	client := NewClient(cfg)

	err := client.UpdateFields(context.Background(), domain.EntityLead, 1, map[string]any{domain.FieldStatus: "Agendada"})
	if err == nil {
		t.Fatalf("expected error for missing field id")
	}
	if called {
		t.Errorf("expected no request to be sent")
	}
}

func TestUpdateFields_TimeoutReturnsError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(newTestConfig(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := client.UpdateFields(ctx, domain.EntityLead, 1, map[string]any{domain.FieldStatus: "Agendada"}); err == nil {
		t.Fatalf("expected timeout error, got nil")
	}
}

func TestCheckFields_ReportsConfiguredIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/leads/custom_fields" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_embedded":{"custom_fields":[
			{"id":101,"name":"Mensagem Agendada - Texto","type":"textarea"},
			{"id":103,"name":"Mensagem Agendada - Status","type":"select"}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))

	statuses, err := client.CheckFields(context.Background(), domain.EntityLead)
	if err != nil {
		t.Fatalf("CheckFields returned error: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	want := map[string]bool{
		domain.FieldMessageText: true,
		domain.FieldScheduledAt: false,
		domain.FieldStatus:      true,
	}
	for _, s := range statuses {
		if s.Configured != want[s.Name] {
			t.Errorf("field %q: expected configured=%v, got %v", s.Name, want[s.Name], s.Configured)
		}
	}
}
