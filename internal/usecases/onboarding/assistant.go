package onboarding

import (
	"context"
	"time"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
)

// assistantSessionTTL is the inactivity window after which an assistant
// session goes cold. The marker's TTL is refreshed on every interaction,
// which implicitly cancels the previous expiry.
const assistantSessionTTL = 30 * time.Minute

const assistantSessionPrefix = "assistant:session:"

// handleAssistant forwards a post-registration message to the external
// responder. The answer arrives asynchronously on the replies topic; chat
// channels get nothing synchronous, the API channel gets an acknowledgement.
func (s *Service) handleAssistant(ctx context.Context, user *domain.User, msg domain.InboundMessage) *domain.Reply {
	if s.Producer == nil {
		return domain.NewReply(texts.AssistantUnavailable)
	}

	sessionID := user.SessionID()

	s.touchAssistantSession(ctx, sessionID)

	if err := s.Producer.SendAssistantRequest(ctx, sessionID, msg.Channel, msg.FromID, msg.Text); err != nil {
		s.Log.Error("failed to forward message to assistant",
			"error", err,
			"user_id", user.ID,
		)
		return domain.NewReply(texts.AssistantUnavailable)
	}

	if msg.Channel == domain.ChannelAPI {
		return domain.NewReply(texts.AssistantAck)
	}
	return &domain.Reply{}
}

func (s *Service) touchAssistantSession(ctx context.Context, sessionID string) {
	if s.Cache == nil {
		return
	}

	key := assistantSessionPrefix + sessionID
	if err := s.Cache.Set(ctx, key, "active", assistantSessionTTL); err != nil {
		// Session freshness is advisory; losing the marker only costs the
		// responder its conversation memory.
		s.Log.Warn("failed to refresh assistant session",
			"error", err,
			"session_id", sessionID,
		)
	}
}
