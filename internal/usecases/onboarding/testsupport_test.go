package onboarding

import (
	"context"
	"io"
	"sync"
	"time"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
)

// fakeUserRepo is an in-memory IUserRepo. Records are copied on every get and
// save so tests observe the same read-modify-write races a real store has.
type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	saveErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.DocID = user.DeriveDocID()
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone != nil && *u.Phone == phone {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) GetByTelegramChatID(ctx context.Context, chatID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) Save(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	user.DocID = user.DeriveDocID()
	user.UpdatedAt = time.Now()
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) UpdateLastSeen(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	now := time.Now()
	u.LastSeenAt = &now
	return nil
}

func (r *fakeUserRepo) ListStaleClarifications(ctx context.Context, before time.Time) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.User
	for _, u := range r.users {
		if u.ChatbotState == domain.StateAwaitingClarification && u.UpdatedAt.Before(before) {
			result = append(result, copyUser(u))
		}
	}
	return result, nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *fakeUserRepo) mustGet(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.users[id])
}

// fakeExtractor runs the provided function, or reports the service as
// unavailable when none is set.
type fakeExtractor struct {
	fn func(ctx context.Context, query string, previousContext string) (*domain.ExtractionResult, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, query string, previousContext string) (*domain.ExtractionResult, error) {
	if f == nil || f.fn == nil {
		return nil, domain.ErrExtractionUnavailable
	}
	return f.fn(ctx, query, previousContext)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *fakeUserRepo, extractor *fakeExtractor) *Service {
	cfg := &Config{
		DefaultCountryCode: "57",
		CampaignPhone:      "15550001111",
		BotUsername:        "campaignbot",
	}

	log := discardLogger()

	return New(
		repo,
		extractor,
		nil, // producer
		nil, // cache
		nil, // alerter
		NewAIToggle(nil, log),
		cfg,
		log,
	)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func seedUser(repo *fakeUserRepo, u *domain.User) *domain.User {
	if u.ID == "" {
		u.ID = "user-" + u.ChatbotState.String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.UpdatedAt = time.Now()
	_ = repo.Create(context.Background(), u)
	return u
}
