package userRepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ports "github.com/admin/tg-bots/referral-bot/internal/ports/repository"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/ports/persistence"
)

type userColumns struct {
	TableName                string
	ID                       string
	DocID                    string
	Phone                    string
	PhoneCountryCode         string
	TelegramChatID           string
	Name                     string
	Lastname                 string
	City                     string
	State                    string
	AcceptsTerms             string
	ChatbotState             string
	PendingClarificationSlot string
	ReferralCode             string
	ReferredByPhone          string
	ReferredByCode           string
	CreatedAt                string
	UpdatedAt                string
	LastSeenAt               string
}

type Repository struct {
	db      persistence.Persistence
	Log     *slog.Logger
	columns userColumns
}

func New(db persistence.Persistence, log *slog.Logger) ports.IUserRepo {
	cols := userColumns{
		TableName:                "users",
		ID:                       "id",
		DocID:                    "doc_id",
		Phone:                    "phone",
		PhoneCountryCode:         "phone_country_code",
		TelegramChatID:           "telegram_chat_id",
		Name:                     "name",
		Lastname:                 "lastname",
		City:                     "city",
		State:                    "state",
		AcceptsTerms:             "accepts_terms",
		ChatbotState:             "chatbot_state",
		PendingClarificationSlot: "pending_clarification_slot",
		ReferralCode:             "referral_code",
		ReferredByPhone:          "referred_by_phone",
		ReferredByCode:           "referred_by_code",
		CreatedAt:                "created_at",
		UpdatedAt:                "updated_at",
		LastSeenAt:               "last_seen_at",
	}
	return &Repository{
		db:      db,
		Log:     log,
		columns: cols,
	}
}

// allColumns returns the column list (18 columns)
func (r *Repository) allColumns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		r.columns.ID,
		r.columns.DocID,
		r.columns.Phone,
		r.columns.PhoneCountryCode,
		r.columns.TelegramChatID,
		r.columns.Name,
		r.columns.Lastname,
		r.columns.City,
		r.columns.State,
		r.columns.AcceptsTerms,
		r.columns.ChatbotState,
		r.columns.PendingClarificationSlot,
		r.columns.ReferralCode,
		r.columns.ReferredByPhone,
		r.columns.ReferredByCode,
		r.columns.CreatedAt,
		r.columns.UpdatedAt,
		r.columns.LastSeenAt)
}

// Create inserts a new user row.
func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	user.DocID = user.DeriveDocID()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		r.columns.TableName,
		r.allColumns())
	err := r.db.Exec(ctx, query,
		user.ID,
		user.DocID,
		user.Phone,
		user.PhoneCountryCode,
		user.TelegramChatID,
		user.Name,
		user.Lastname,
		user.City,
		user.State,
		user.AcceptsTerms,
		user.ChatbotState,
		user.PendingClarificationSlot,
		user.ReferralCode,
		user.ReferredByPhone,
		user.ReferredByCode,
		user.CreatedAt,
		user.UpdatedAt,
		user.LastSeenAt)
	if err != nil {
		r.Log.Error("failed to create user",
			"error", err,
			"user_id", user.ID,
			"doc_id", user.DocID)
		return fmt.Errorf("failed to create user: %w", err)
	}
	r.Log.Debug("user created successfully",
		"id", user.ID,
		"doc_id", user.DocID)
	return nil
}

func (r *Repository) getByColumn(ctx context.Context, column string, value interface{}) (*domain.User, error) {
	var user domain.User
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		r.allColumns(),
		r.columns.TableName,
		column)
	err := r.db.Get(ctx, &user, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		r.Log.Error("failed to get user",
			"error", err,
			"column", column)
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return &user, nil
}

// GetByID looks a user up by internal id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getByColumn(ctx, r.columns.ID, id)
}

// GetByPhone looks a user up by normalized phone (E.164 with '+').
func (r *Repository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getByColumn(ctx, r.columns.Phone, phone)
}

// GetByTelegramChatID looks a user up by the Telegram chat id.
func (r *Repository) GetByTelegramChatID(ctx context.Context, chatID string) (*domain.User, error) {
	return r.getByColumn(ctx, r.columns.TelegramChatID, chatID)
}

// GetByReferralCode looks a user up by their issued referral code.
func (r *Repository) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return r.getByColumn(ctx, r.columns.ReferralCode, code)
}

// Save persists the full user record. The document id is re-derived on every
// save so a row keyed by internal id migrates to the phone key as soon as a
// phone is captured.
func (r *Repository) Save(ctx context.Context, user *domain.User) error {
	user.DocID = user.DeriveDocID()
	user.UpdatedAt = time.Now()

	query := fmt.Sprintf(`UPDATE %s SET
		%s = $2, %s = $3, %s = $4, %s = $5, %s = $6,
		%s = $7, %s = $8, %s = $9, %s = $10, %s = $11,
		%s = $12, %s = $13, %s = $14, %s = $15, %s = $16, %s = $17
		WHERE %s = $1`,
		r.columns.TableName,
		r.columns.DocID,
		r.columns.Phone,
		r.columns.PhoneCountryCode,
		r.columns.TelegramChatID,
		r.columns.Name,
		r.columns.Lastname,
		r.columns.City,
		r.columns.State,
		r.columns.AcceptsTerms,
		r.columns.ChatbotState,
		r.columns.PendingClarificationSlot,
		r.columns.ReferralCode,
		r.columns.ReferredByPhone,
		r.columns.ReferredByCode,
		r.columns.UpdatedAt,
		r.columns.LastSeenAt,
		r.columns.ID)
	rowsAffected, err := r.db.ExecWithResult(ctx, query,
		user.ID,
		user.DocID,
		user.Phone,
		user.PhoneCountryCode,
		user.TelegramChatID,
		user.Name,
		user.Lastname,
		user.City,
		user.State,
		user.AcceptsTerms,
		user.ChatbotState,
		user.PendingClarificationSlot,
		user.ReferralCode,
		user.ReferredByPhone,
		user.ReferredByCode,
		user.UpdatedAt,
		user.LastSeenAt)
	if err != nil {
		r.Log.Error("failed to save user",
			"error", err,
			"user_id", user.ID)
		return fmt.Errorf("failed to save user: %w", err)
	}
	if rowsAffected == 0 {
		r.Log.Warn("user not found for save", "user_id", user.ID)
		return domain.ErrUserNotFound
	}
	r.Log.Debug("user saved successfully", "user_id", user.ID, "doc_id", user.DocID)
	return nil
}

// Delete removes a user row. Used when a channel-only duplicate merges into
// the phone-keyed record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		r.columns.TableName,
		r.columns.ID)
	rowsAffected, err := r.db.ExecWithResult(ctx, query, id)
	if err != nil {
		r.Log.Error("failed to delete user",
			"error", err,
			"user_id", id)
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if rowsAffected == 0 {
		r.Log.Warn("user not found for delete", "user_id", id)
		return domain.ErrUserNotFound
	}
	r.Log.Debug("user deleted", "user_id", id)
	return nil
}

// ListStaleClarifications returns users stuck in awaiting_clarification whose
// last update is older than the cutoff.
func (r *Repository) ListStaleClarifications(ctx context.Context, before time.Time) ([]*domain.User, error) {
	var users []*domain.User
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s < $2`,
		r.allColumns(),
		r.columns.TableName,
		r.columns.ChatbotState,
		r.columns.UpdatedAt)
	err := r.db.Select(ctx, &users, query, domain.StateAwaitingClarification, before)
	if err != nil {
		r.Log.Error("failed to list stale clarifications", "error", err)
		return nil, fmt.Errorf("failed to list stale clarifications: %w", err)
	}
	return users, nil
}

// UpdateLastSeen refreshes the activity timestamps.
func (r *Repository) UpdateLastSeen(ctx context.Context, id string) error {
	now := time.Now()
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = $2 WHERE %s = $3`,
		r.columns.TableName,
		r.columns.LastSeenAt,
		r.columns.UpdatedAt,
		r.columns.ID)
	rowsAffected, err := r.db.ExecWithResult(ctx, query, now, now, id)
	if err != nil {
		r.Log.Error("failed to update last seen",
			"error", err,
			"user_id", id)
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if rowsAffected == 0 {
		r.Log.Warn("user not found for update last seen", "user_id", id)
		return domain.ErrUserNotFound
	}
	return nil
}
