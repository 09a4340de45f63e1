package kommo

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/pkg/logger"
)

// Client mirrors scheduled message state into entity custom fields through
// the Kommo REST API (v4).
type Client struct {
	httpClient *resty.Client
	limiter    *rate.Limiter
	fieldIDs   map[string]int64
	baseURL    string
}

type fieldValue struct {
	Value any `json:"value"`
}

type customFieldValue struct {
	FieldID int64        `json:"field_id"`
	Values  []fieldValue `json:"values"`
}

type updateEntityRequest struct {
	CustomFieldsValues []customFieldValue `json:"custom_fields_values"`
}

type customFieldsResponse struct {
	Embedded struct {
		CustomFields []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"custom_fields"`
	} `json:"_embedded"`
}

// FieldStatus tells whether a configured field id exists on the host.
type FieldStatus struct {
	Name       string `json:"name"`
	FieldID    int64  `json:"fieldId"`
	Configured bool   `json:"configured"`
}

func NewClient(cfg environments.KommoConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 7
	}

	return &Client{
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		fieldIDs: map[string]int64{
			domain.FieldMessageText: cfg.Fields.Text,
			domain.FieldScheduledAt: cfg.Fields.DateTime,
			domain.FieldStatus:      cfg.Fields.Status,
		},
		baseURL: cfg.BaseURL,
	}
}

// UpdateFields writes the given fields (by name) onto one lead or contact.
func (c *Client) UpdateFields(ctx context.Context, entityType domain.EntityType, entityID int64, fields map[string]any) error {
	path, err := entityPath(entityType)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	payload := updateEntityRequest{CustomFieldsValues: make([]customFieldValue, 0, len(names))}
	for _, name := range names {
		id := c.fieldIDs[name]
		if id == 0 {
			return fmt.Errorf("no field id configured for %q", name)
		}
		payload.CustomFieldsValues = append(payload.CustomFieldsValues, customFieldValue{
			FieldID: id,
			Values:  []fieldValue{{Value: fields[name]}},
		})
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	startTime := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"entity": path,
			"id":     strconv.FormatInt(entityID, 10),
		}).
		SetBody(payload).
		Patch("/api/v4/{entity}/{id}")

	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	logger.Debugf("Kommo PATCH %s/%d completed in %v (status: %d)", path, entityID, time.Since(startTime), resp.StatusCode())

	if !resp.IsSuccess() {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// CheckFields lists the entity type's custom fields and reports which of the
// configured ids exist. It never creates fields.
func (c *Client) CheckFields(ctx context.Context, entityType domain.EntityType) ([]FieldStatus, error) {
	path, err := entityPath(entityType)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var body customFieldsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("entity", path).
		SetQueryParam("limit", "250").
		SetResult(&body).
		Get("/api/v4/{entity}/custom_fields")

	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	existing := make(map[int64]bool, len(body.Embedded.CustomFields))
	for _, f := range body.Embedded.CustomFields {
		existing[f.ID] = true
	}

	statuses := make([]FieldStatus, 0, len(c.fieldIDs))
	for _, name := range []string{domain.FieldMessageText, domain.FieldScheduledAt, domain.FieldStatus} {
		id := c.fieldIDs[name]
		statuses = append(statuses, FieldStatus{
			Name:       name,
			FieldID:    id,
			Configured: id != 0 && existing[id],
		})
	}

	return statuses, nil
}

func (c *Client) GetURL() string {
	return c.baseURL
}

func entityPath(t domain.EntityType) (string, error) {
	switch t {
	case domain.EntityLead:
		return "leads", nil
	case domain.EntityContact:
		return "contacts", nil
	}
	return "", fmt.Errorf("unsupported entity type %q", t)
}
