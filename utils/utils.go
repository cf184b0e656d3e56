package utils

import (
	"strings"
	"unicode/utf8"
)

// NormalizeInput is the normalisation shared by cache keys and phrase
// matching: surrounding whitespace trimmed, lowercased.
func NormalizeInput(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
