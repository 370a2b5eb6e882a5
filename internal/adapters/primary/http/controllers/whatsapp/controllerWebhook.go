package whatsapp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"log/slog"

	whatsappClient "github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/whatsapp"
	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
	"github.com/gin-gonic/gin"
)

const processTimeout = 60 * time.Second

type Controller struct {
	Onboarding service.IOnboardingService
	Messenger  service.IMessengerService
	WaClient   *whatsappClient.Client
	Log        *slog.Logger
}

func New(onboarding service.IOnboardingService, messenger service.IMessengerService, waClient *whatsappClient.Client, log *slog.Logger) *Controller {
	return &Controller{
		Onboarding: onboarding,
		Messenger:  messenger,
		WaClient:   waClient,
		Log:        log,
	}
}

func (c *Controller) RegisterRoutes(router *gin.Engine) {
	router.GET("/webhook/whatsapp", c.handleVerification)
	router.POST("/webhook/whatsapp", c.handleWebhook)
}

// handleVerification answers the Cloud API subscription handshake.
func (c *Controller) handleVerification(ctx *gin.Context) {
	mode := ctx.Query("hub.mode")
	token := ctx.Query("hub.verify_token")
	challenge := ctx.Query("hub.challenge")

	if mode != "subscribe" || !c.WaClient.VerifyToken(token) {
		c.Log.Warn("webhook verification rejected", "mode", mode)
		ctx.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
		return
	}

	c.Log.Info("webhook verified")
	ctx.String(http.StatusOK, challenge)
}

func (c *Controller) handleWebhook(ctx *gin.Context) {
	var payload whatsappClient.WebhookPayload

	if err := ctx.ShouldBindJSON(&payload); err != nil {
		c.Log.Error("failed to bind webhook payload", "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// Ack first; Meta retries on anything but a fast 200.
	ctx.JSON(http.StatusOK, gin.H{"status": "received"})

	for _, msg := range inboundFromPayload(&payload) {
		go c.process(msg)
	}
}

func (c *Controller) process(msg domain.InboundMessage) {
	bgCtx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	reply, err := c.Onboarding.HandleInbound(bgCtx, msg)
	if err != nil {
		c.Log.Error("failed to handle whatsapp message",
			"error", err,
			"from", msg.FromID,
		)
		return
	}

	if err := c.Messenger.DispatchReply(bgCtx, domain.ChannelWhatsApp, msg.FromID, reply); err != nil {
		c.Log.Error("failed to dispatch reply",
			"error", err,
			"from", msg.FromID,
		)
	}
}

// inboundFromPayload flattens a webhook payload into the channel-agnostic
// form. Status callbacks and non-text messages are dropped.
func inboundFromPayload(payload *whatsappClient.WebhookPayload) []domain.InboundMessage {
	var result []domain.InboundMessage

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				text := strings.TrimSpace(msg.Text.Body)
				if text == "" {
					continue
				}
				result = append(result, domain.InboundMessage{
					FromID:     msg.From,
					Text:       text,
					Channel:    domain.ChannelWhatsApp,
					SenderName: change.Value.SenderName(msg.From),
				})
			}
		}
	}

	return result
}
