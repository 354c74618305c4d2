package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
)

// historyCap bounds the in-memory delivery history
const historyCap = 200

// DeliveryRecord is one entry in the notification history
type DeliveryRecord struct {
	Notification Notification      `json:"notification"`
	Channels     []string          `json:"channels"`
	Failures     map[string]string `json:"failures,omitempty"`
	SentAt       time.Time         `json:"sent_at"`
}

// Gateway fans notifications out to the configured channels
type Gateway struct {
	mu       sync.Mutex
	channels map[string]Channel
	history  []DeliveryRecord

	historyPath string // JSONL append log, empty disables
	log         zerolog.Logger
}

// NewGateway builds a gateway with every channel the config enables
func NewGateway(ctx context.Context, cfg config.NotifyConfig) *Gateway {
	g := &Gateway{
		channels: map[string]Channel{},
		log:      config.NewMCPLogger("notification"),
	}

	if cfg.LogDir != "" {
		g.add(NewFileChannel(cfg.LogDir))
		g.historyPath = filepath.Join(cfg.LogDir, "notifications.jsonl")
	}
	if cfg.DiscordWebhookURL != "" {
		g.add(NewDiscordChannel(cfg.DiscordWebhookURL))
	}
	if cfg.SlackWebhookURL != "" || cfg.SlackBotToken != "" {
		g.add(NewSlackChannel(cfg.SlackWebhookURL, cfg.SlackBotToken, cfg.SlackChannel))
	}
	if cfg.WebhookURL != "" {
		g.add(NewWebhookChannel(cfg.WebhookURL))
	}
	if cfg.SMTPHost != "" && cfg.EmailTo != "" {
		g.add(NewEmailChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailTo))
	}
	if cfg.TelegramBotToken != "" {
		if ch, err := NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramChatID); err != nil {
			g.log.Warn().Err(err).Msg("Telegram channel unavailable")
		} else {
			g.add(ch)
		}
	}
	if cfg.FCMCredentialsFile != "" {
		if ch, err := NewFCMChannel(ctx, cfg.FCMCredentialsFile, cfg.FCMTopic); err != nil {
			g.log.Warn().Err(err).Msg("FCM channel unavailable")
		} else {
			g.add(ch)
		}
	}

	g.log.Info().Int("channels", len(g.channels)).Msg("Notification gateway ready")
	return g
}

func (g *Gateway) add(ch Channel) {
	g.channels[ch.Name()] = ch
}

// AddChannel registers an extra channel, replacing any with the same name
func (g *Gateway) AddChannel(ch Channel) {
	g.mu.Lock()
	g.channels[ch.Name()] = ch
	g.mu.Unlock()
}

// ChannelNames lists configured channels sorted by name
func (g *Gateway) ChannelNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.channels))
	for name := range g.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Send delivers to the named channels, or to every channel when names is
// empty. Per-channel failures are collected, not fatal; Send errors only
// when no channel accepted the notification.
func (g *Gateway) Send(ctx context.Context, n Notification, names ...string) (DeliveryRecord, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	n.Severity = normalizeSeverity(string(n.Severity))

	g.mu.Lock()
	targets := []Channel{}
	if len(names) == 0 {
		for _, ch := range g.channels {
			targets = append(targets, ch)
		}
	} else {
		for _, name := range names {
			if ch, ok := g.channels[name]; ok {
				targets = append(targets, ch)
			}
		}
	}
	g.mu.Unlock()

	record := DeliveryRecord{
		Notification: n,
		Failures:     map[string]string{},
		SentAt:       time.Now().UTC(),
	}
	if len(targets) == 0 {
		return record, fmt.Errorf("no matching channels configured")
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Name() < targets[j].Name() })
	for _, ch := range targets {
		if err := ch.Send(ctx, n); err != nil {
			record.Failures[ch.Name()] = err.Error()
			g.log.Error().Err(err).Str("channel", ch.Name()).Str("title", n.Title).Msg("Notification delivery failed")
			continue
		}
		record.Channels = append(record.Channels, ch.Name())
	}

	g.record(record)

	if len(record.Channels) == 0 {
		return record, fmt.Errorf("all %d channels failed", len(targets))
	}
	return record, nil
}

// Broadcast delivers to every configured channel
func (g *Gateway) Broadcast(ctx context.Context, n Notification) (DeliveryRecord, error) {
	return g.Send(ctx, n)
}

func (g *Gateway) record(rec DeliveryRecord) {
	g.mu.Lock()
	g.history = append(g.history, rec)
	if len(g.history) > historyCap {
		g.history = g.history[len(g.history)-historyCap:]
	}
	path := g.historyPath
	g.mu.Unlock()

	if path == "" {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		g.log.Error().Err(err).Msg("Notification history write failed")
		return
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		g.log.Error().Err(err).Msg("Notification history write failed")
	}
}

// History returns the newest records first
func (g *Gateway) History(limit int) []DeliveryRecord {
	if limit <= 0 {
		limit = 20
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.history)
	if limit > n {
		limit = n
	}
	out := make([]DeliveryRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, g.history[i])
	}
	return out
}

// Status reports the configured channels and history depth
func (g *Gateway) Status() map[string]any {
	names := g.ChannelNames()

	g.mu.Lock()
	historyLen := len(g.history)
	g.mu.Unlock()

	return map[string]any{
		"channels":      names,
		"channel_count": len(names),
		"history_size":  historyLen,
		"history_cap":   historyCap,
	}
}
