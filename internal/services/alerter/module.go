package alerter

import (
	"context"
	"fmt"

	"github.com/admin/tg-bots/referral-bot/internal/adapters/secondary/alerter"
	"github.com/admin/tg-bots/referral-bot/internal/ports/service"
)

// Service implements IAlerterService.
type Service struct {
	client *alerter.Client
}

func New(client *alerter.Client) service.IAlerterService {
	return &Service{
		client: client,
	}
}

func (s *Service) SendAlert(ctx context.Context, message string) error {
	if s.client == nil {
		return fmt.Errorf("alerter client is not initialized")
	}

	return s.client.SendAlert(ctx, message)
}
