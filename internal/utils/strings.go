package utils

import (
	"strings"
	"unicode"
)

// CapitalizeName uppercases the first letter of a name part and lowers
// the rest, e.g. "mARIA" -> "Maria".
func CapitalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// FormatStartTime normalizes a stored start time to HH:MM. Stores carry
// either "HH:MM" or "HH:MM:SS".
func FormatStartTime(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 {
		return s[:5]
	}
	return s
}
