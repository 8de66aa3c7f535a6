// Package redact masks credential material before it reaches a log line.
package redact

import "strings"

// Email keeps the first two characters of the local part and the domain.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	runes := []rune(local)
	if len(runes) > 2 {
		local = string(runes[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token returns a fixed marker; tokens are never partially shown.
func Token(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED_TOKEN]"
}
