package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DiscordChannel posts notifications as webhook embeds
type DiscordChannel struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordChannel creates a Discord webhook channel
func NewDiscordChannel(webhookURL string) *DiscordChannel {
	return &DiscordChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordChannel) Name() string { return "discord" }

// Send posts an embed. Discord returns 204 on success, 200 with wait=true.
func (d *DiscordChannel) Send(ctx context.Context, n Notification) error {
	embed := map[string]any{
		"title":       fmt.Sprintf("%s %s", n.Severity.icon(), n.Title),
		"description": n.Message,
		"color":       n.Severity.discordColor(),
		"timestamp":   n.Timestamp.Format(time.RFC3339),
	}
	if len(n.Metadata) > 0 {
		fields := []map[string]any{}
		for k, v := range n.Metadata {
			fields = append(fields, map[string]any{
				"name":   k,
				"value":  fmt.Sprintf("%v", v),
				"inline": true,
			})
		}
		embed["fields"] = fields
	}

	body, err := json.Marshal(map[string]any{"embeds": []any{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
