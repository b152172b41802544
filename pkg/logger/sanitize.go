package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedDestination masks a destination for logging: emails keep the first
// rune and TLD, phone numbers keep the last four digits.
func SanitizedDestination(destination string) string {
	if strings.Contains(destination, "@") {
		return SanitizedEmail(destination)
	}
	if len(destination) <= 4 {
		return strings.Repeat("*", len(destination))
	}
	return strings.Repeat("*", len(destination)-4) + destination[len(destination)-4:]
}

// SanitizeQueryString reports whether a raw query string carries sensitive
// parameters and must be fully redacted.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{"password", "token", "code", "secret"}

	lowered := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(lowered, param+"=") {
			return true
		}
	}
	return false
}
