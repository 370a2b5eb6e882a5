package onboarding

import (
	"context"
	"strings"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
)

// handleRegistration advances one registration turn. Returns the record to
// persist (it may differ from the input after a merge) and the reply parts.
func (s *Service) handleRegistration(ctx context.Context, user *domain.User, msg domain.InboundMessage) (*domain.User, *domain.Reply) {
	// Unknown states self-heal to intake; the machine must never be stuck.
	if !user.ChatbotState.IsValid() {
		s.Log.Warn("unknown chatbot state, restarting intake",
			"state", user.ChatbotState,
			"user_id", user.ID,
		)
		user.ChatbotState = domain.StateNew
		user.PendingClarificationSlot = nil
	}

	prevState := user.ChatbotState

	// Chat-only channels collect the phone before anything else; the phone
	// is the canonical identity key.
	if !user.HasPhone() && !msg.Channel.PhoneNative() {
		switch prevState {
		case domain.StateNew:
			res := s.runExtraction(ctx, user, msg.Text)
			s.captureReferral(ctx, user, res)
			user.ChatbotState = domain.StateAwaitingPhone
			return user, domain.NewReply(texts.FormatWelcome(msg.SenderName), texts.AskPhone)

		case domain.StateAwaitingPhone:
			phone := NormalizePhone(msg.Text, s.Cfg.DefaultCountryCode)
			if phone == "" {
				return user, domain.NewReply(texts.ReAskPhone)
			}

			merged, err := s.bindPhone(ctx, user, phone)
			if err != nil {
				s.Log.Error("failed to bind phone",
					"error", err,
					"user_id", user.ID,
				)
				return user, domain.NewReply(texts.Apology)
			}
			user = merged

			if user.ChatbotState.IsTerminal() {
				// Already registered through another channel.
				return user, s.completionReply(user, nil, nil)
			}
			return user, s.askNext(user, prevState, nil, nil)
		}
	}

	res := s.runExtraction(ctx, user, msg.Text)

	s.captureReferral(ctx, user, res)

	if prevState == domain.StateAwaitingClarification {
		s.resolveClarification(user, msg.Text, res)
	}

	acks := s.applySlots(user, res)

	// Clarification requests come only from the AI path. Geographic ambiguity
	// always wins: the tentative value stays stored but registration cannot
	// proceed on a default guess.
	if res.Clarification != nil {
		if res.Clarification.IsGeographic() {
			slot := domain.ClarificationSlotCity
			user.PendingClarificationSlot = &slot
			user.ChatbotState = domain.StateAwaitingClarification

			prompt := res.Clarification.Prompt
			if prompt == "" {
				prompt = texts.FormatClarifyCity(strValue(user.City))
			}
			return user, buildReply(res.TonePrefix, acks, prompt)
		}

		// Non-geographic ambiguity defers to completeness: applied fields may
		// already have advanced the flow.
		if !res.HasAnySlot() {
			prompt := res.Clarification.Prompt
			if prompt == "" {
				prompt = texts.Apology
			}
			return user, buildReply(res.TonePrefix, acks, prompt)
		}
	}

	// Legacy confirmation state: a decline or silence re-shows the summary,
	// an affirmative was already folded into AcceptsTerms.
	if prevState == domain.StateConfirmData && !user.HasAcceptedTerms() {
		user.ChatbotState = domain.StateConfirmData
		return user, buildReply(res.TonePrefix, acks,
			texts.FormatConfirmData(strValue(user.Name), strValue(user.City)))
	}

	reply := s.askNext(user, prevState, res.TonePrefix, acks)
	if prevState == domain.StateNew {
		reply.Parts = append([]string{texts.FormatWelcome(msg.SenderName)}, reply.Parts...)
	}
	return user, reply
}

// runExtraction tries the AI path and falls back to the deterministic one.
// The fallback never fails, so registration always makes progress.
func (s *Service) runExtraction(ctx context.Context, user *domain.User, text string) *domain.ExtractionResult {
	res, err := s.extract(ctx, user, text)
	if err != nil {
		s.Log.Debug("extraction degraded to fallback",
			"reason", err,
			"user_id", user.ID,
			"state", user.ChatbotState,
		)
		return s.fallbackExtract(user, text)
	}
	return res
}

// resolveClarification consumes the user's answer to a pending disambiguation.
// An affirmative keeps the tentative value; anything else replaces it, either
// from extraction or verbatim.
func (s *Service) resolveClarification(user *domain.User, text string, res *domain.ExtractionResult) {
	if user.PendingClarificationSlot == nil {
		user.ChatbotState = domain.StateNew
		return
	}

	if *user.PendingClarificationSlot == domain.ClarificationSlotCity {
		if isAffirmative(text) {
			// Tentative value confirmed; nothing to overwrite.
			res.City = nil
		} else {
			if res.City == nil {
				trimmed := strings.TrimSpace(text)
				if trimmed != "" {
					res.City = &trimmed
				}
			}
			// The stored value was a disputed guess; drop it so the answer
			// lands even though it is not an explicit correction.
			user.City = nil
		}
	}

	user.PendingClarificationSlot = nil
	user.ChatbotState = domain.StateNew
}

// applySlots writes extracted values onto the record. A filled slot is only
// overwritten on an explicit correction; the returned acknowledgements
// reference the old and new value.
func (s *Service) applySlots(user *domain.User, res *domain.ExtractionResult) []string {
	var acks []string

	setSlot := func(dst **string, val *string) {
		if val == nil {
			return
		}
		v := strings.TrimSpace(*val)
		if v == "" {
			return
		}
		if *dst == nil || strings.TrimSpace(**dst) == "" {
			*dst = &v
			return
		}
		if res.IsCorrection && !strings.EqualFold(**dst, v) {
			prev := **dst
			if res.PreviousValue != nil && *res.PreviousValue != "" {
				prev = *res.PreviousValue
			}
			acks = append(acks, texts.FormatCorrectionAck(prev, v))
			*dst = &v
		}
	}

	setSlot(&user.Name, res.Name)
	setSlot(&user.Lastname, res.Lastname)
	setSlot(&user.City, res.City)
	setSlot(&user.State, res.State)

	if res.AcceptsTerms != nil && *res.AcceptsTerms {
		user.AcceptsTerms = true
	}

	return acks
}

// askNext decides the next question from completeness. Priority is fixed:
// name, then city, then terms; a satisfied slot is never re-asked. All three
// present completes registration on the spot.
func (s *Service) askNext(user *domain.User, prevState domain.ChatbotState, tone *string, acks []string) *domain.Reply {
	if user.HasName() && user.HasCity() && user.HasAcceptedTerms() {
		return s.completionReply(user, tone, acks)
	}

	switch {
	case !user.HasName():
		user.ChatbotState = domain.StateAwaitingName
		return buildReply(tone, acks, texts.AskName)
	case !user.HasCity():
		user.ChatbotState = domain.StateAwaitingCity
		return buildReply(tone, acks, texts.AskCity)
	default:
		user.ChatbotState = domain.StateAwaitingTerms
		question := texts.AskTerms
		if prevState == domain.StateAwaitingTerms {
			question = texts.ReAskTerms
		}
		return buildReply(tone, acks, question)
	}
}

// completionReply finishes registration: the referral code is issued at most
// once, invite links are built and the state goes terminal.
func (s *Service) completionReply(user *domain.User, tone *string, acks []string) *domain.Reply {
	code := s.ensureReferralCode(user)
	user.ChatbotState = domain.StateCompleted

	waLink := BuildWhatsAppLink(s.Cfg.CampaignPhone, code)
	tgLink := BuildTelegramLink(s.Cfg.BotUsername, code)

	reply := buildReply(tone, acks, texts.FormatCompleted(strValue(user.Name), code))
	reply.Parts = append(reply.Parts, texts.ShareIntro+"\n"+waLink+"\n"+tgLink)
	return reply
}

func buildReply(tone *string, acks []string, question string) *domain.Reply {
	parts := make([]string, 0, len(acks)+1)
	parts = append(parts, acks...)
	parts = append(parts, texts.WithTonePrefix(tone, question))
	return &domain.Reply{Parts: parts}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
