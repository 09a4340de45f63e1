package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/pkg/logger"
)

// Client posts operational alerts (JSON) to an external webhook.
type Client struct {
	httpClient *resty.Client
	webhookURL string
}

func NewAlertClient(cfg environments.AlertConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		webhookURL: cfg.WebhookURL,
	}
}

// SendAlert succeeds on 200, 202 or 204.
func (c *Client) SendAlert(ctx context.Context, payload map[string]any) error {
	if c.webhookURL == "" {
		return fmt.Errorf("alert webhook URL is not configured")
	}

	startTime := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.webhookURL)

	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	logger.Infof("Alert webhook request to %s completed in %v (status: %d)", c.webhookURL, time.Since(startTime), resp.StatusCode())

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	}

	return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
}

func (c *Client) GetURL() string {
	return c.webhookURL
}
