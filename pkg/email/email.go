package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail guesses a first/last name pair from an email address.
// Used as the mail greeting fallback when a candidate record carries no
// usable name (pre-registration magic-link requests).
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "Candidat", "Candidat"
	}

	first := capitalize(parts[0])
	last := "Candidat"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
