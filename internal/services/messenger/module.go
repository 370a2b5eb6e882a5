package messenger

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/ports/messaging"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
)

// Service routes outbound messages to the channel's transport client. API
// callers get their reply in the HTTP response, so that channel has no
// outbound client.
type Service struct {
	clients map[domain.Channel]messaging.Client
	log     *slog.Logger
}

func New(telegramClient messaging.Client, whatsappClient messaging.Client, log *slog.Logger) service.IMessengerService {
	clients := make(map[domain.Channel]messaging.Client)
	if telegramClient != nil {
		clients[domain.ChannelTelegram] = telegramClient
	}
	if whatsappClient != nil {
		clients[domain.ChannelWhatsApp] = whatsappClient
	}

	return &Service{
		clients: clients,
		log:     log,
	}
}

func (s *Service) Send(ctx context.Context, channel domain.Channel, recipient string, text string) error {
	if channel == domain.ChannelAPI {
		// Synchronous channel, nothing to push.
		return nil
	}

	client, ok := s.clients[channel]
	if !ok {
		return fmt.Errorf("no messaging client for channel %s", channel)
	}

	return client.Send(ctx, recipient, text)
}

// DispatchReply sends every reply part in order. One failed part does not
// block the rest; the first error is returned after the loop.
func (s *Service) DispatchReply(ctx context.Context, channel domain.Channel, recipient string, reply *domain.Reply) error {
	if reply == nil || len(reply.Parts) == 0 {
		return nil
	}

	var firstErr error
	for i, part := range reply.Parts {
		if part == "" {
			continue
		}
		if err := s.Send(ctx, channel, recipient, part); err != nil {
			s.log.Warn("failed to send reply part",
				"error", err,
				"channel", channel,
				"part_index", i,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
