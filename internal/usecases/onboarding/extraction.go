package onboarding

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
)

// referredByPattern recognizes the canonical invite greeting. The (?i) flag
// lets the 8-character code arrive in either case; it is uppercased before
// lookup.
var referredByPattern = regexp.MustCompile(`(?i)referido\s+por:?\s*([A-Z0-9]{8})`)

// startCommandPattern recognizes the payload Telegram appends when a chat is
// opened through the t.me/<bot>?start=<code> deep link.
var startCommandPattern = regexp.MustCompile(`(?i)^/start\s+([A-Z0-9]{8})\s*$`)

// extract runs the AI extraction path. When the toggle is off the call is
// skipped entirely and the caller falls back, same as on a service failure.
func (s *Service) extract(ctx context.Context, user *domain.User, text string) (*domain.ExtractionResult, error) {
	if s.AIToggle != nil && !s.AIToggle.Enabled() {
		return nil, fmt.Errorf("%w: ai extraction disabled", domain.ErrExtractionUnavailable)
	}
	if s.Extractor == nil {
		return nil, fmt.Errorf("%w: no extractor configured", domain.ErrExtractionUnavailable)
	}

	return s.Extractor.Extract(ctx, text, previousQuestion(user.ChatbotState))
}

// previousQuestion reconstructs the question the user is answering, used as
// conversation context for the extraction model. Always the exact prompt the
// user saw, so the model's context cannot drift from the conversation copy.
func previousQuestion(state domain.ChatbotState) string {
	switch state {
	case domain.StateAwaitingPhone:
		return texts.AskPhone
	case domain.StateAwaitingName:
		return texts.AskName
	case domain.StateAwaitingCity:
		return texts.AskCity
	case domain.StateAwaitingTerms, domain.StateConfirmData:
		return texts.AskTerms
	case domain.StateAwaitingClarification:
		return texts.ClarifyWhichCity
	default:
		return ""
	}
}

// fallbackExtract is the deterministic path: the invite-greeting pattern plus
// verbatim slot capture in slot-specific states. It never produces a
// clarification; only the AI path may ask one.
func (s *Service) fallbackExtract(user *domain.User, text string) *domain.ExtractionResult {
	result := &domain.ExtractionResult{
		Confidence: 1.0,
	}

	trimmed := strings.TrimSpace(text)

	if match := referredByPattern.FindStringSubmatch(trimmed); match != nil {
		code := strings.ToUpper(match[1])
		result.ReferralCode = &code
	} else if match := startCommandPattern.FindStringSubmatch(trimmed); match != nil {
		code := strings.ToUpper(match[1])
		result.ReferralCode = &code
	}

	switch user.ChatbotState {
	case domain.StateAwaitingName:
		if trimmed != "" && result.ReferralCode == nil {
			result.Name = &trimmed
		}
	case domain.StateAwaitingCity, domain.StateAwaitingClarification:
		if trimmed != "" && result.ReferralCode == nil {
			result.City = &trimmed
		}
	case domain.StateAwaitingTerms, domain.StateConfirmData:
		if isAffirmative(trimmed) {
			yes := true
			result.AcceptsTerms = &yes
		}
	}

	return result
}

// isAffirmative matches the accepted consent answers, case-insensitive
// "sí"/"si" with optional punctuation.
func isAffirmative(text string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.Trim(cleaned, ".,!¡\"'")
	return cleaned == "sí" || cleaned == "si"
}
