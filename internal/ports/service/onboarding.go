package service

import (
	"context"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
)

// IOnboardingService is the conversational core: identity resolution plus the
// registration state machine for one inbound message.
type IOnboardingService interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage) (*domain.Reply, error)
	ResetRegistration(ctx context.Context, userID string) error
}
