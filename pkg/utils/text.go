// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"path/filepath"
	"unicode/utf8"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen]) + "..."
}

// SourceLabel returns the human-readable citation label for a source path (its file name).
func SourceLabel(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
