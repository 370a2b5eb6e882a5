package api

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
	"github.com/gin-gonic/gin"
)

// Controller exposes the conversation over plain HTTP for test harnesses and
// operator consoles. Unlike the webhooks, responses are synchronous.
type Controller struct {
	Onboarding service.IOnboardingService
	ApiKey     string
	Log        *slog.Logger
}

func New(onboarding service.IOnboardingService, apiKey string, log *slog.Logger) *Controller {
	return &Controller{
		Onboarding: onboarding,
		ApiKey:     apiKey,
		Log:        log,
	}
}

func (c *Controller) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/message", c.handleMessage)
	}

	admin := router.Group("/admin", c.requireApiKey)
	{
		admin.POST("/users/:id/reset", c.resetRegistration)
	}
}

func (c *Controller) requireApiKey(ctx *gin.Context) {
	if c.ApiKey == "" || ctx.GetHeader("X-Api-Key") != c.ApiKey {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	ctx.Next()
}

// MessageRequest is one conversational turn from an API caller.
type MessageRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Text       string `json:"text" binding:"required"`
	SenderName string `json:"sender_name,omitempty"`
}

// MessageResponse carries the bot answer for the turn. Parts preserves the
// multi-message structure the chat channels would deliver separately.
type MessageResponse struct {
	Response string   `json:"response"`
	Parts    []string `json:"parts,omitempty"`
}

func (c *Controller) handleMessage(ctx *gin.Context) {
	var req MessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.Log.Warn("failed to bind message request", "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg := domain.InboundMessage{
		FromID:     req.UserID,
		Text:       req.Text,
		Channel:    domain.ChannelAPI,
		SenderName: req.SenderName,
	}

	reply, err := c.Onboarding.HandleInbound(ctx.Request.Context(), msg)
	if err != nil {
		c.Log.Error("failed to handle api message",
			"error", err,
			"user_id", req.UserID,
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	ctx.JSON(http.StatusOK, MessageResponse{
		Response: reply.Primary(),
		Parts:    reply.Parts,
	})
}

func (c *Controller) resetRegistration(ctx *gin.Context) {
	userID := ctx.Param("id")

	if err := c.Onboarding.ResetRegistration(ctx.Request.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		// Business errors were already logged inside the use case.
		if !domain.IsBusinessError(err) {
			c.Log.Error("failed to reset registration",
				"error", err,
				"user_id", userID,
			)
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset registration"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "reset"})
}
