package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
)

// AssistantReplyMessage is the payload the external responder publishes back
// on the replies topic.
type AssistantReplyMessage struct {
	SessionID    string `json:"session_id"`
	Channel      string `json:"channel"`
	Recipient    string `json:"recipient"`
	ResponseText string `json:"response_text"`
}

// AssistantReplyHandler delivers assistant answers to the original channel.
type AssistantReplyHandler struct {
	messenger service.IMessengerService
	log       *slog.Logger
}

func NewAssistantReplyHandler(messenger service.IMessengerService, log *slog.Logger) *AssistantReplyHandler {
	return &AssistantReplyHandler{
		messenger: messenger,
		log:       log,
	}
}

func (h *AssistantReplyHandler) HandleMessage(ctx context.Context, key string, value []byte) error {
	var msg AssistantReplyMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal assistant reply: %w", err)
	}

	if msg.ResponseText == "" {
		h.log.Debug("assistant reply with empty text, skipping", "session_id", msg.SessionID)
		return nil
	}

	channel := domain.Channel(msg.Channel)
	if !channel.IsValid() {
		return fmt.Errorf("assistant reply with unknown channel %q [session_id=%s]", msg.Channel, msg.SessionID)
	}

	if msg.Recipient == "" {
		return fmt.Errorf("assistant reply without recipient [session_id=%s]", msg.SessionID)
	}

	if err := h.messenger.Send(ctx, channel, msg.Recipient, msg.ResponseText); err != nil {
		return fmt.Errorf("failed to deliver assistant reply [session_id=%s, channel=%s]: %w",
			msg.SessionID, channel, err)
	}

	h.log.Debug("assistant reply delivered",
		"session_id", msg.SessionID,
		"channel", channel,
	)

	return nil
}
