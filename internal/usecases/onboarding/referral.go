package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
	"github.com/google/uuid"
)

// GenerateReferralCode derives an 8-character uppercase code from a random
// unique token.
func GenerateReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}

// ensureReferralCode assigns the code exactly once. A user who already holds
// one keeps it; repeated completions never regenerate.
func (s *Service) ensureReferralCode(user *domain.User) string {
	if user.HasReferralCode() {
		return *user.ReferralCode
	}
	code := GenerateReferralCode()
	user.ReferralCode = &code
	s.Log.Info("referral code issued", "user_id", user.ID)
	return code
}

// BuildWhatsAppLink builds the wa.me deep link with the invite greeting
// prefilled. Spaces encode as %20; the '+' form breaks inside WhatsApp.
// Encoding problems come back as a visible error string, never an error
// value, so the conversation is not blocked.
func BuildWhatsAppLink(campaignPhone string, code string) string {
	if campaignPhone == "" || len(code) != 8 {
		return texts.ReferralError
	}

	greeting := texts.FormatInviteGreeting(code)
	encoded := strings.ReplaceAll(url.QueryEscape(greeting), "+", "%20")

	return fmt.Sprintf("https://wa.me/%s?text=%s", strings.TrimPrefix(campaignPhone, "+"), encoded)
}

// BuildTelegramLink builds the bot-start deep link carrying the code.
func BuildTelegramLink(botUsername string, code string) string {
	if botUsername == "" || len(code) != 8 {
		return texts.ReferralError
	}

	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), code)
}

// captureReferral attributes the user to a referrer at first contact. The
// attribution is written at most once; later codes are ignored.
func (s *Service) captureReferral(ctx context.Context, user *domain.User, res *domain.ExtractionResult) {
	if user.ReferredByCode != nil || user.ReferredByPhone != nil {
		return
	}
	if res == nil {
		return
	}

	if res.ReferralCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*res.ReferralCode))
		referrer, err := s.UserRepo.GetByReferralCode(ctx, code)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				s.Log.Warn("unknown referral code ignored",
					"user_id", user.ID,
					"code", code,
				)
			} else {
				s.Log.Error("failed to look up referral code",
					"error", err,
					"user_id", user.ID,
				)
			}
			return
		}

		user.ReferredByCode = &code
		user.ReferredByPhone = referrer.Phone
		s.Log.Info("referral attributed",
			"user_id", user.ID,
			"referrer_id", referrer.ID,
		)
		return
	}

	if res.ReferredByPhone != nil {
		phone := NormalizePhone(*res.ReferredByPhone, s.Cfg.DefaultCountryCode)
		if phone == "" {
			return
		}
		user.ReferredByPhone = &phone
		s.Log.Info("referral attributed by phone", "user_id", user.ID)
	}
}
