package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	ports "github.com/admin/tg-bots/referral-bot/internal/ports/repository"
)

const clarificationExpirerName = "clarification-expirer"

// clarificationTTL is how long a user may sit in awaiting_clarification
// before the question is considered abandoned.
const clarificationTTL = 24 * time.Hour

// ClarificationExpirer clears abandoned clarification questions so the next
// inbound message restarts from the pending slot instead of a stale prompt.
// Runs hourly.
type ClarificationExpirer struct {
	userRepo ports.IUserRepo
	log      *slog.Logger
}

func NewClarificationExpirer(userRepo ports.IUserRepo, log *slog.Logger) *ClarificationExpirer {
	return &ClarificationExpirer{
		userRepo: userRepo,
		log:      log,
	}
}

func (j *ClarificationExpirer) Name() string {
	return clarificationExpirerName
}

func (j *ClarificationExpirer) NextRun(now time.Time) time.Time {
	return now.Add(1 * time.Hour)
}

func (j *ClarificationExpirer) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-clarificationTTL)

	stale, err := j.userRepo.ListStaleClarifications(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale clarifications: %w", err)
	}

	var failed int
	for _, user := range stale {
		user.PendingClarificationSlot = nil
		user.ChatbotState = domain.StateNew
		if err := j.userRepo.Save(ctx, user); err != nil {
			failed++
			j.log.Warn("failed to expire clarification",
				"error", err,
				"user_id", user.ID,
			)
		}
	}

	if len(stale) > 0 {
		j.log.Info("expired stale clarifications",
			"total", len(stale),
			"failed", failed,
		)
	}

	if failed > 0 {
		return fmt.Errorf("failed to expire %d of %d stale clarifications", failed, len(stale))
	}
	return nil
}
