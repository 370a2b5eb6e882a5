package telegram

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
	"github.com/gin-gonic/gin"
)

// processTimeout bounds background processing of one update after the webhook
// has already been acked.
const processTimeout = 60 * time.Second

type Controller struct {
	Onboarding  service.IOnboardingService
	Messenger   service.IMessengerService
	SecretToken string
	Log         *slog.Logger
}

func New(onboarding service.IOnboardingService, messenger service.IMessengerService, secretToken string, log *slog.Logger) *Controller {
	return &Controller{
		Onboarding:  onboarding,
		Messenger:   messenger,
		SecretToken: secretToken,
		Log:         log,
	}
}

func (c *Controller) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhook/telegram", c.handleWebhook)
}

func (c *Controller) handleWebhook(ctx *gin.Context) {
	if c.SecretToken != "" {
		secretToken := ctx.GetHeader("X-Telegram-Bot-Api-Secret-Token")
		if secretToken != c.SecretToken {
			c.Log.Warn("webhook with invalid secret token")
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
			return
		}
	}

	var update domain.Update

	if err := ctx.ShouldBindJSON(&update); err != nil {
		c.Log.Error("failed to bind webhook request", "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	c.Log.Debug("received webhook update", "update_id", update.UpdateID)

	// Telegram expects 200 OK right away; processing continues in background.
	// A slow extraction call must not make Telegram retry the update.
	ctx.JSON(http.StatusOK, gin.H{"ok": true})

	msg, ok := inboundFromUpdate(&update)
	if !ok {
		return
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		reply, err := c.Onboarding.HandleInbound(bgCtx, msg)
		if err != nil {
			c.Log.Error("failed to handle update",
				"error", err,
				"update_id", update.UpdateID,
			)
			return
		}

		if err := c.Messenger.DispatchReply(bgCtx, domain.ChannelTelegram, msg.FromID, reply); err != nil {
			c.Log.Error("failed to dispatch reply",
				"error", err,
				"update_id", update.UpdateID,
			)
		}
	}()
}

// inboundFromUpdate converts a Telegram update to the channel-agnostic form.
// Non-text updates and bot messages are dropped.
func inboundFromUpdate(update *domain.Update) (domain.InboundMessage, bool) {
	if update.Message == nil || update.Message.Chat == nil || update.Message.Text == nil {
		return domain.InboundMessage{}, false
	}
	if update.Message.From != nil && update.Message.From.IsBot {
		return domain.InboundMessage{}, false
	}

	text := strings.TrimSpace(*update.Message.Text)
	if text == "" {
		return domain.InboundMessage{}, false
	}

	var senderName string
	if update.Message.From != nil {
		senderName = update.Message.From.FirstName
	}

	return domain.InboundMessage{
		FromID:     strconv.FormatInt(update.Message.Chat.ID, 10),
		Text:       text,
		Channel:    domain.ChannelTelegram,
		SenderName: senderName,
	}, true
}
