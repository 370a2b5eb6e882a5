package onboarding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
)

// HandleInbound processes one inbound message end to end: resolve identity,
// run the state machine (or the assistant sub-flow once registration is
// done), persist, and return the ordered reply parts.
//
// The resolve-transition-save cycle is serialized per user; without it two
// near-simultaneous messages race on read-modify-write and one update is
// lost.
func (s *Service) HandleInbound(ctx context.Context, msg domain.InboundMessage) (*domain.Reply, error) {
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" || !msg.Channel.IsValid() {
		return &domain.Reply{}, nil
	}

	channelKey := s.lockKey(msg)
	unlock := s.locks.Lock(channelKey)
	defer unlock()

	user, err := s.resolveUser(ctx, msg)
	if err != nil {
		s.Log.Error("failed to resolve user",
			"error", err,
			"channel", msg.Channel,
		)
		return domain.NewReply(texts.Apology), nil
	}

	// A merged user is reachable through several channel keys at once. The
	// canonical key serializes those; it is always taken second, so the two
	// acquisitions cannot deadlock against each other.
	if canonicalKey := userLockKey(user); canonicalKey != channelKey {
		unlockCanonical := s.locks.Lock(canonicalKey)
		defer unlockCanonical()

		// Another channel may have advanced the record while this lock was
		// contended.
		if fresh, err := s.UserRepo.GetByID(ctx, user.ID); err == nil {
			user = fresh
		}
	}

	if user.ChatbotState.IsTerminal() {
		reply := s.handleAssistant(ctx, user, msg)
		if err := s.UserRepo.UpdateLastSeen(ctx, user.ID); err != nil {
			s.Log.Warn("failed to update last seen", "error", err, "user_id", user.ID)
		}
		return reply, nil
	}

	user, reply := s.handleRegistration(ctx, user, msg)

	// Best-effort save: the reply is computed from the in-memory record even
	// when the write fails, so the user is answered this turn. The next turn
	// may then see stale state.
	now := time.Now()
	user.LastSeenAt = &now
	if err := s.UserRepo.Save(ctx, user); err != nil {
		s.Log.Error("failed to save user after transition",
			"error", err,
			"user_id", user.ID,
			"state", user.ChatbotState,
		)
	}

	return reply, nil
}

// lockKey picks a stable per-user key before the record is resolved: the
// normalized phone for phone-native channels, the chat id scoped to the
// channel for Telegram, the caller-held id for API.
func (s *Service) lockKey(msg domain.InboundMessage) string {
	switch {
	case msg.Channel.PhoneNative():
		if phone := NormalizePhone(msg.FromID, s.Cfg.DefaultCountryCode); phone != "" {
			return phone
		}
		return string(msg.Channel) + ":" + msg.FromID
	case msg.Channel == domain.ChannelTelegram:
		return string(msg.Channel) + ":" + msg.FromID
	default:
		return msg.FromID
	}
}

// userLockKey mirrors lockKey for callers that already hold the record.
func userLockKey(user *domain.User) string {
	if user.HasPhone() {
		return *user.Phone
	}
	if user.TelegramChatID != nil && *user.TelegramChatID != "" {
		return string(domain.ChannelTelegram) + ":" + *user.TelegramChatID
	}
	return user.ID
}

// ResetRegistration is the administrative reset: the conversation cursor is
// cleared while profile slots and any issued referral code are preserved.
func (s *Service) ResetRegistration(ctx context.Context, userID string) error {
	user, err := s.UserRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(userLockKey(user))
	defer unlock()

	user.ChatbotState = domain.StateNew
	user.PendingClarificationSlot = nil

	if err := s.UserRepo.Save(ctx, user); err != nil {
		s.Log.Error("failed to reset registration",
			"error", err,
			"user_id", user.ID,
		)
		return domain.WrapBusinessError(fmt.Errorf("failed to reset registration: %w", err))
	}

	s.Log.Info("registration reset", "user_id", user.ID)
	return nil
}
