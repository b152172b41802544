// Package contact normalizes contact destinations (emails and Brazilian
// phone numbers) before they are stored or dispatched to.
package contact

import (
	"strings"
	"unicode"
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone strips formatting and prefixes the Brazilian country code
// when absent.
func NormalizePhone(value string) string {
	digits := DigitsOnly(value)
	if strings.HasPrefix(digits, "55") {
		return digits
	}
	return "55" + digits
}
