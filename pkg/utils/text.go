// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"regexp"
	"strings"
)

var (
	listMarker = regexp.MustCompile(`^\s*(?:\(?\d+\)?[\).:-]\s+|[-*•]\s+)`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// StripListMarker removes a leading enumeration ("1. ", "(2) ", "3- ") or bullet ("- ", "* ", "• ")
// from a single line.
func StripListMarker(line string) string {
	return listMarker.ReplaceAllString(line, "")
}

// StripListMarkers applies StripListMarker to every line of text and trims the result.
func StripListMarkers(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = StripListMarker(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// NormalizeKey lowercases s and collapses its whitespace, for comparing free text.
func NormalizeKey(s string) string {
	return strings.ToLower(CollapseWhitespace(s))
}
