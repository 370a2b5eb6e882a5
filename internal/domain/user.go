package domain

import (
	"strings"
	"time"
)

// User is the canonical profile for one physical person, keyed primarily by
// phone number. A channel-only record (Telegram chat id without a phone) is a
// transient pre-registration state; once a phone is captured the phone-keyed
// record is authoritative.
type User struct {
	ID               string       `json:"id" db:"id"`
	DocID            string       `json:"doc_id" db:"doc_id"`
	Phone            *string      `json:"phone,omitempty" db:"phone"`
	PhoneCountryCode *string      `json:"phone_country_code,omitempty" db:"phone_country_code"`
	TelegramChatID   *string      `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	Name             *string      `json:"name,omitempty" db:"name"`
	Lastname         *string      `json:"lastname,omitempty" db:"lastname"`
	City             *string      `json:"city,omitempty" db:"city"`
	State            *string      `json:"state,omitempty" db:"state"`
	AcceptsTerms     bool         `json:"accepts_terms" db:"accepts_terms"`
	ChatbotState     ChatbotState `json:"chatbot_state" db:"chatbot_state"`
	// PendingClarificationSlot marks a slot whose value is tentative until the
	// user disambiguates it (chiefly city-name collisions).
	PendingClarificationSlot *string    `json:"pending_clarification_slot,omitempty" db:"pending_clarification_slot"`
	ReferralCode             *string    `json:"referral_code,omitempty" db:"referral_code"`
	ReferredByPhone          *string    `json:"referred_by_phone,omitempty" db:"referred_by_phone"`
	ReferredByCode           *string    `json:"referred_by_code,omitempty" db:"referred_by_code"`
	CreatedAt                time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at" db:"updated_at"`
	LastSeenAt               *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
}

// DeriveDocID computes the persistence document id: phone without '+' when a
// phone is present, the internal id otherwise. When a phone first appears the
// old id-keyed document migrates to the phone-keyed one.
func (u *User) DeriveDocID() string {
	if u.Phone != nil && *u.Phone != "" {
		return strings.TrimPrefix(*u.Phone, "+")
	}
	return u.ID
}

// SessionID identifies the user's assistant session: phone when present,
// Telegram chat id as fallback. Session continuity depends on this rule.
func (u *User) SessionID() string {
	if u.Phone != nil && *u.Phone != "" {
		return *u.Phone
	}
	if u.TelegramChatID != nil && *u.TelegramChatID != "" {
		return *u.TelegramChatID
	}
	return u.ID
}

func (u *User) HasName() bool {
	return u.Name != nil && strings.TrimSpace(*u.Name) != ""
}

func (u *User) HasCity() bool {
	return u.City != nil && strings.TrimSpace(*u.City) != ""
}

func (u *User) HasAcceptedTerms() bool {
	return u.AcceptsTerms
}

func (u *User) HasPhone() bool {
	return u.Phone != nil && *u.Phone != ""
}

func (u *User) HasReferralCode() bool {
	return u.ReferralCode != nil && *u.ReferralCode != ""
}
