package onboarding

import (
	"regexp"
	"strings"
)

var strictPhonePattern = regexp.MustCompile(`^\+[0-9]{10,15}$`)

// NormalizePhone canonicalizes a raw identifier into E.164 form with a
// leading '+'. Rules, in order:
//   - strip everything but digits and '+'
//   - '+' followed by 10-15 digits is accepted as-is
//   - 10-15 bare digits get a '+' prefix
//   - 7-10 bare digits are treated as a local number and get the default
//     country code
//
// Anything else returns "" and the caller treats it as "no phone yet".
// Normalization is idempotent: feeding a normalized phone back in returns it
// unchanged.
func NormalizePhone(raw string, defaultCountryCode string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if cleaned == "" {
		return ""
	}

	if strings.HasPrefix(cleaned, "+") {
		if strictPhonePattern.MatchString(cleaned) {
			return cleaned
		}
		return ""
	}

	digits := len(cleaned)
	switch {
	case digits >= 10 && digits <= 15:
		return "+" + cleaned
	case digits >= 7 && digits < 10:
		if defaultCountryCode == "" {
			return ""
		}
		return "+" + defaultCountryCode + cleaned
	default:
		return ""
	}
}

// PhoneCountryCode extracts the country code from a normalized phone. Without
// a full numbering-plan table only the deployment default is recognizable;
// other prefixes return nil rather than a guess.
func PhoneCountryCode(phone string, defaultCountryCode string) *string {
	if defaultCountryCode == "" || !strings.HasPrefix(phone, "+"+defaultCountryCode) {
		return nil
	}
	cc := defaultCountryCode
	return &cc
}
