package service

import (
	"context"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
)

// IMessengerService delivers outbound messages on a specific channel.
// DispatchReply sends every part in order, best-effort.
type IMessengerService interface {
	Send(ctx context.Context, channel domain.Channel, recipient string, text string) error
	DispatchReply(ctx context.Context, channel domain.Channel, recipient string, reply *domain.Reply) error
}
