package kafka

import (
	"context"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
)

// IAssistantProducer forwards post-registration messages to the external
// assistant responder, keyed by the user's session id.
type IAssistantProducer interface {
	SendAssistantRequest(ctx context.Context, sessionID string, channel domain.Channel, recipient string, text string) error
	Send(ctx context.Context, key string, value []byte) error
	Close() error
}
