package repository

import (
	"context"
	"time"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
)

// IUserRepo is the persistence gateway for canonical user records.
//
// Save derives the document id (phone without '+' when present, internal id
// otherwise) and migrates an id-keyed row to a phone-keyed one when a phone
// first appears; that derivation is this contract's concern, not the caller's.
type IUserRepo interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByTelegramChatID(ctx context.Context, chatID string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	UpdateLastSeen(ctx context.Context, id string) error
	ListStaleClarifications(ctx context.Context, before time.Time) ([]*domain.User, error)
}
