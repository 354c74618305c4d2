package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookChannel posts notifications as plain JSON to an arbitrary endpoint
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel creates a generic webhook channel
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookChannel) Name() string { return "webhook" }

// Send posts the notification. Any 2xx or 3xx status counts as delivered.
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(map[string]any{
		"text":      n.Message,
		"title":     n.Title,
		"severity":  string(n.Severity),
		"timestamp": n.Timestamp.Format(time.RFC3339),
		"source":    n.Source,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
