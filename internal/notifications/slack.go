package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackChannel posts notifications via an incoming webhook, or through the
// chat.postMessage API when a bot token is configured instead.
type SlackChannel struct {
	webhookURL string
	botToken   string
	channel    string
	apiURL     string
	client     *http.Client
}

// NewSlackChannel creates a Slack channel. Either webhookURL or
// botToken+channel must be set; the webhook wins when both are.
func NewSlackChannel(webhookURL, botToken, channel string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		botToken:   botToken,
		channel:    channel,
		apiURL:     "https://slack.com/api/chat.postMessage",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackChannel) Name() string { return "slack" }

func (s *SlackChannel) Send(ctx context.Context, n Notification) error {
	attachment := map[string]any{
		"color": n.Severity.slackColor(),
		"title": fmt.Sprintf("%s %s", n.Severity.icon(), n.Title),
		"text":  n.Message,
		"ts":    n.Timestamp.Unix(),
	}
	payload := map[string]any{
		"attachments": []any{attachment},
	}

	url := s.webhookURL
	if url == "" {
		url = s.apiURL
		payload["channel"] = s.channel
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.webhookURL == "" {
		req.Header.Set("Authorization", "Bearer "+s.botToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	// The API path reports errors in the body with a 200 status
	if s.webhookURL == "" {
		var apiResp struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return fmt.Errorf("slack response malformed: %w", err)
		}
		if !apiResp.OK {
			return fmt.Errorf("slack API error: %s", apiResp.Error)
		}
	}
	return nil
}
