package config

import (
	"strings"
)

// maskSecret keeps the first and last four characters of a secret.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// maskDiscordToken keeps the first segment (the base64 bot id) readable
// for diagnostics and masks the rest.
func maskDiscordToken(token string) string {
	if token == "" {
		return ""
	}
	id, rest, ok := strings.Cut(token, ".")
	if !ok {
		return maskSecret(token)
	}
	return id + "." + strings.Repeat("*", len(rest))
}

// ValidationError is a config validation failure tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func formatValidationError(field, message, secret string) error {
	msg := field + ": " + message
	if masked := maskSecret(secret); masked != "" {
		msg += " (value: " + masked + ")"
	}
	return &ValidationError{Field: field, Message: msg}
}
