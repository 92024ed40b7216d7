package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var trackingIDPattern = regexp.MustCompile(`^audit_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateTrackingID checks the caller-facing audit id format.
func ValidateTrackingID(id string) error {
	if id == "" {
		return fmt.Errorf("tracking ID cannot be empty")
	}
	if !trackingIDPattern.MatchString(id) {
		return fmt.Errorf("invalid tracking ID format")
	}
	return nil
}
