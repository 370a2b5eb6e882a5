package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/google/uuid"
)

// resolveUser finds or creates the canonical record for an inbound message.
// Lookup order, first match wins: exact phone, internal id, channel chat id.
// Phone-native channels skip the chat-id path.
func (s *Service) resolveUser(ctx context.Context, msg domain.InboundMessage) (*domain.User, error) {
	phone := ""
	if msg.Channel.PhoneNative() {
		phone = NormalizePhone(msg.FromID, s.Cfg.DefaultCountryCode)
	}

	if phone != "" {
		user, err := s.UserRepo.GetByPhone(ctx, phone)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to resolve by phone: %w", err)
		}
	}

	// API callers may already hold the canonical id.
	user, err := s.UserRepo.GetByID(ctx, msg.FromID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to resolve by id: %w", err)
	}

	if !msg.Channel.PhoneNative() {
		user, err = s.UserRepo.GetByTelegramChatID(ctx, msg.FromID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to resolve by chat id: %w", err)
		}
	}

	return s.createUser(ctx, msg, phone)
}

func (s *Service) createUser(ctx context.Context, msg domain.InboundMessage, phone string) (*domain.User, error) {
	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		ChatbotState: domain.StateNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if phone != "" {
		user.Phone = &phone
		user.PhoneCountryCode = PhoneCountryCode(phone, s.Cfg.DefaultCountryCode)
	}
	if msg.Channel == domain.ChannelTelegram {
		chatID := msg.FromID
		user.TelegramChatID = &chatID
	}

	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.Log.Info("new user created",
		"user_id", user.ID,
		"channel", msg.Channel,
		"has_phone", phone != "",
	)

	return user, nil
}

// bindPhone attaches a freshly captured phone to the current record. When
// another record already owns that phone, the phone-keyed record is
// authoritative: the channel identifier moves onto it and the transient
// channel-only record is discarded. Returns the record to continue with.
func (s *Service) bindPhone(ctx context.Context, user *domain.User, phone string) (*domain.User, error) {
	existing, err := s.UserRepo.GetByPhone(ctx, phone)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check phone owner: %w", err)
	}

	if err == nil && existing.ID != user.ID {
		if user.TelegramChatID != nil {
			existing.TelegramChatID = user.TelegramChatID
		}
		if err := s.UserRepo.Save(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to attach channel to existing user: %w", err)
		}

		// The duplicate is only a problem if it survives; lookup order prefers
		// the phone-keyed record either way, so a failed discard is logged for
		// manual cleanup, never retried into a resurrection.
		if err := s.UserRepo.Delete(ctx, user.ID); err != nil {
			s.Log.Error("failed to discard duplicate user record",
				"error", err,
				"duplicate_id", user.ID,
				"canonical_id", existing.ID,
			)
			s.alert(ctx, fmt.Sprintf("duplicate user record left for manual cleanup: %s (canonical: %s)", user.ID, existing.ID))
		} else {
			s.Log.Info("merged channel record into phone-keyed user",
				"discarded_id", user.ID,
				"canonical_id", existing.ID,
			)
		}

		return existing, nil
	}

	user.Phone = &phone
	user.PhoneCountryCode = PhoneCountryCode(phone, s.Cfg.DefaultCountryCode)
	return user, nil
}

// alert is best-effort; a missing alerter or send failure only logs.
func (s *Service) alert(ctx context.Context, message string) {
	if s.Alerter == nil {
		return
	}
	if err := s.Alerter.SendAlert(ctx, message); err != nil {
		s.Log.Warn("failed to send alert", "error", err)
	}
}
