package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotifierClient delegates notification delivery to the notification sidecar.
// The ledger treats delivery as best-effort: callers never block a request on
// these calls, and failures are logged, not surfaced.
type NotifierClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewNotifierClient(baseURL string) *NotifierClient {
	return &NotifierClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateNotificationPayload is an event notification shown on the dashboard.
type CreateNotificationPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	SourceID    string `json:"source_id"`
	Time        string `json:"time"`
}

// GeneralNotificationPayload is a notice addressed to a specific recipient
// (e.g. the person receiving equipment on a handover).
type GeneralNotificationPayload struct {
	Recipient   string `json:"recipient"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Type        string `json:"type"`
}

// CreateNotification posts an event notification to the sidecar.
func (c *NotifierClient) CreateNotification(ctx context.Context, p CreateNotificationPayload) error {
	return c.post(ctx, "/notifications", p)
}

// SendGeneralNotification posts a recipient-addressed notification.
func (c *NotifierClient) SendGeneralNotification(ctx context.Context, recipient, title, description, priority, typ string) error {
	return c.post(ctx, "/notifications/general", GeneralNotificationPayload{
		Recipient:   recipient,
		Title:       title,
		Description: description,
		Priority:    priority,
		Type:        typ,
	})
}

func (c *NotifierClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifier: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notifier: sidecar returned %d", resp.StatusCode)
	}
	return nil
}
