package onboarding

import (
	"strings"
	"testing"

	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
	"github.com/stretchr/testify/assert"
)

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code := GenerateReferralCode()
		assert.Len(t, code, 8)
		assert.Equal(t, strings.ToUpper(code), code)
		for _, r := range code {
			isDigit := r >= '0' && r <= '9'
			isHex := r >= 'A' && r <= 'F'
			assert.True(t, isDigit || isHex, "unexpected character %q in %s", r, code)
		}
		seen[code] = true
	}

	// Collisions over 100 draws from a 16^8 space would point at a broken
	// source of randomness.
	assert.Greater(t, len(seen), 95)
}

func TestBuildWhatsAppLink(t *testing.T) {
	link := BuildWhatsAppLink("+15550001111", "ABCD1234")

	assert.True(t, strings.HasPrefix(link, "https://wa.me/15550001111?text="), link)
	assert.Contains(t, link, "ABCD1234")
	// WhatsApp renders '+' literally, spaces must be percent-encoded.
	assert.NotContains(t, link, "+")
	assert.Contains(t, link, "%20")
}

func TestBuildWhatsAppLinkRejectsBadInputs(t *testing.T) {
	assert.Equal(t, texts.ReferralError, BuildWhatsAppLink("", "ABCD1234"))
	assert.Equal(t, texts.ReferralError, BuildWhatsAppLink("+15550001111", ""))
	assert.Equal(t, texts.ReferralError, BuildWhatsAppLink("+15550001111", "SHORT"))
	assert.Equal(t, texts.ReferralError, BuildWhatsAppLink("+15550001111", "TOOLONGCODE"))
}

func TestBuildTelegramLink(t *testing.T) {
	assert.Equal(t,
		"https://t.me/campaignbot?start=ABCD1234",
		BuildTelegramLink("campaignbot", "ABCD1234"))

	// A leading @ in the configured username is tolerated.
	assert.Equal(t,
		"https://t.me/campaignbot?start=ABCD1234",
		BuildTelegramLink("@campaignbot", "ABCD1234"))

	assert.Equal(t, texts.ReferralError, BuildTelegramLink("", "ABCD1234"))
	assert.Equal(t, texts.ReferralError, BuildTelegramLink("campaignbot", "BAD"))
}
