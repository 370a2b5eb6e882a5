package jobs

import (
	"context"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staleRepo implements the two IUserRepo methods the expirer touches; the
// rest are unreachable from the job.
type staleRepo struct {
	users map[string]*domain.User
}

func (r *staleRepo) Create(ctx context.Context, user *domain.User) error { panic("unused") }
func (r *staleRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	panic("unused")
}
func (r *staleRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	panic("unused")
}
func (r *staleRepo) GetByTelegramChatID(ctx context.Context, chatID string) (*domain.User, error) {
	panic("unused")
}
func (r *staleRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	panic("unused")
}
func (r *staleRepo) Delete(ctx context.Context, id string) error         { panic("unused") }
func (r *staleRepo) UpdateLastSeen(ctx context.Context, id string) error { panic("unused") }

func (r *staleRepo) Save(ctx context.Context, user *domain.User) error {
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *staleRepo) ListStaleClarifications(ctx context.Context, before time.Time) ([]*domain.User, error) {
	var result []*domain.User
	for _, u := range r.users {
		if u.ChatbotState == domain.StateAwaitingClarification && u.UpdatedAt.Before(before) {
			c := *u
			result = append(result, &c)
		}
	}
	return result, nil
}

func TestClarificationExpirerResetsStaleUsers(t *testing.T) {
	slot := domain.ClarificationSlotCity
	staleSlot := slot
	repo := &staleRepo{users: map[string]*domain.User{
		"stale": {
			ID:                       "stale",
			ChatbotState:             domain.StateAwaitingClarification,
			PendingClarificationSlot: &staleSlot,
			UpdatedAt:                time.Now().Add(-48 * time.Hour),
		},
		"fresh": {
			ID:                       "fresh",
			ChatbotState:             domain.StateAwaitingClarification,
			PendingClarificationSlot: &slot,
			UpdatedAt:                time.Now(),
		},
		"completed": {
			ID:           "completed",
			ChatbotState: domain.StateCompleted,
			UpdatedAt:    time.Now().Add(-48 * time.Hour),
		},
	}}

	job := NewClarificationExpirer(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, job.Run(context.Background()))

	stale := repo.users["stale"]
	assert.Equal(t, domain.StateNew, stale.ChatbotState)
	assert.Nil(t, stale.PendingClarificationSlot)

	// A pending question inside the window is left alone.
	fresh := repo.users["fresh"]
	assert.Equal(t, domain.StateAwaitingClarification, fresh.ChatbotState)
	assert.NotNil(t, fresh.PendingClarificationSlot)

	assert.Equal(t, domain.StateCompleted, repo.users["completed"].ChatbotState)
}
