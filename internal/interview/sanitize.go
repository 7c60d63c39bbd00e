package interview

import (
	"regexp"
	"strings"

	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/pkg/utils"
)

var (
	leadingPunct  = regexp.MustCompile(`^[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/\s]+`)
	wrappedQuotes = regexp.MustCompile(`(?s)^["“”']+(.+?)["“”']+$`)
	questionLike  = regexp.MustCompile(`[^.!?\n]*\?`)
)

// Sanitize cleans a generated interviewer turn: list markers are stripped from every line,
// then wrapping quotes and leading punctuation. If nothing is left the trimmed input is returned.
func Sanitize(text string) string {
	cleaned := utils.StripListMarkers(text)
	cleaned = wrappedQuotes.ReplaceAllString(cleaned, "$1")
	cleaned = strings.TrimSpace(leadingPunct.ReplaceAllString(cleaned, ""))
	if cleaned == "" {
		return strings.TrimSpace(text)
	}
	return cleaned
}

// PreviousQuestions returns the last n question sentences asked by the interviewer.
func PreviousQuestions(transcript []models.Turn, n int) []string {
	if n <= 0 {
		return nil
	}
	var out []string
	for _, t := range transcript {
		if t.Role != models.RoleInterviewer {
			continue
		}
		for _, q := range questionLike.FindAllString(t.Content, -1) {
			if q = strings.TrimSpace(q); len(q) > 1 {
				out = append(out, q)
			}
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
