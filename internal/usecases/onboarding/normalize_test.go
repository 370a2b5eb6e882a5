package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		cc       string
		expected string
	}{
		{"strict form accepted as-is", "+573001112233", "57", "+573001112233"},
		{"formatting stripped from strict form", "+57 (300) 111-2233", "57", "+573001112233"},
		{"bare digits get plus prefix", "573001112233", "57", "+573001112233"},
		{"ten bare digits get plus prefix", "3001112233", "57", "+3001112233"},
		{"local number gets country code", "3001122", "57", "+573001122"},
		{"nine digit local number", "300111223", "57", "+57300111223"},
		{"local number without country code fails", "3001122", "", ""},
		{"plus with too few digits", "+12345", "57", ""},
		{"plus with too many digits", "+1234567890123456", "57", ""},
		{"too short", "12345", "57", ""},
		{"too long", "1234567890123456", "57", ""},
		{"plus in the middle is dropped", "57300+1112233", "57", "+573001112233"},
		{"letters only", "hola", "57", ""},
		{"empty input", "", "57", ""},
		{"whitespace only", "   ", "57", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.raw, tt.cc))
		})
	}
}

func TestPhoneCountryCode(t *testing.T) {
	cc := PhoneCountryCode("+573001112233", "57")
	if assert.NotNil(t, cc) {
		assert.Equal(t, "57", *cc)
	}

	// A foreign prefix is not guessed at.
	assert.Nil(t, PhoneCountryCode("+15550001111", "57"))
	assert.Nil(t, PhoneCountryCode("+573001112233", ""))
}

func TestNormalizePhoneIsIdempotent(t *testing.T) {
	inputs := []string{
		"+573001112233",
		"57 300 111 2233",
		"3001122",
		"300-111-2233",
	}

	for _, raw := range inputs {
		once := NormalizePhone(raw, "57")
		if once == "" {
			continue
		}
		assert.Equal(t, once, NormalizePhone(once, "57"), "input %q", raw)
	}
}
