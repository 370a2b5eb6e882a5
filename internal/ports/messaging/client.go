package messaging

import "context"

// Client is a channel-specific delivery API (Telegram, WhatsApp).
// Recipient is the channel's native identifier in string form.
type Client interface {
	Send(ctx context.Context, recipient string, text string) error
}
