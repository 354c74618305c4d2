package notifications

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramChannel sends notifications through a Telegram bot
type TelegramChannel struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramChannel creates a Telegram channel for one chat
func NewTelegramChannel(botToken string, chatID int64) (*TelegramChannel, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return &TelegramChannel{api: api, chatID: chatID}, nil
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Send(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("%s *%s*\n\n%s", n.Severity.icon(), n.Title, n.Message)
	if len(n.Metadata) > 0 {
		text += "\n"
		for k, v := range n.Metadata {
			text += fmt.Sprintf("\n• %s: `%v`", k, v)
		}
	}
	text += fmt.Sprintf("\n\n_%s_", n.Timestamp.Format("2006-01-02 15:04:05"))

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}
