package alerter

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/telegram"
)

// Alerts go through the telegram adapter directly; delegating delivery to the
// other secondary adapter is a deliberate trade-off.

// Client delivers operational alerts to a Telegram group or forum topic.
type Client struct {
	telegramClient  *telegram.Client
	chatID          int64
	messageThreadID *int64
	log             *slog.Logger
}

func NewClient(cfg *Config, log *slog.Logger) *Client {
	if cfg == nil {
		return nil
	}

	tgClient := telegram.NewClient(cfg.BotToken, log)
	return &Client{
		telegramClient:  tgClient,
		chatID:          cfg.ChatID,
		messageThreadID: cfg.MessageThreadID,
		log:             log,
	}
}

// SendAlert posts an alert message.
func (c *Client) SendAlert(ctx context.Context, message string) error {
	if c == nil || c.telegramClient == nil {
		return fmt.Errorf("alerter client is not initialized")
	}

	req := telegram.SendMessageRequest{
		ChatID:          c.chatID,
		Text:            message,
		MessageThreadID: c.messageThreadID,
	}

	if _, err := c.telegramClient.SendMessageWithRequest(ctx, req); err != nil {
		c.log.Warn("failed to send alert",
			"error", err,
			"chat_id", c.chatID,
			"message_thread_id", c.messageThreadID,
		)
		return fmt.Errorf("failed to send alert: %w", err)
	}

	c.log.Debug("alert sent successfully",
		"chat_id", c.chatID,
		"message_thread_id", c.messageThreadID,
	)

	return nil
}
