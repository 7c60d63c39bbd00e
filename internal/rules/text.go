package rules

import (
	"strings"

	"github.com/hyperjump/interviewd/pkg/utils"
)

const (
	minOutputChars    = 10
	minStatementChars = 20
)

var sentinelVariants = map[string]bool{
	"NONE":                true,
	"NO RULES":            true,
	"NO BEHAVIORAL RULES": true,
	"N/A":                 true,
}

// FilterStatements turns raw text-mode output into rule statements. The sentinel, blank output
// and output shorter than ten characters yield nothing. Each remaining line must not be a
// sentinel variant, must be at least twenty characters and must mention a relevance keyword.
// Statements that normalize to the same text are kept once.
func FilterStatements(raw, assistant string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, SentinelNone) || len(raw) < minOutputChars {
		return nil
	}
	keywords := []string{"child", "parent", "family", "behavior", "task", "routine"}
	if a := strings.ToLower(strings.TrimSpace(assistant)); a != "" {
		keywords = append(keywords, a)
	}

	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(strings.TrimSpace(utils.StripListMarker(line)), `"`)
		line = strings.TrimSpace(line)
		if line == "" || sentinelVariants[strings.ToUpper(strings.TrimRight(line, "."))] {
			continue
		}
		if len(line) < minStatementChars {
			continue
		}
		lower := strings.ToLower(line)
		relevant := false
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}
		key := utils.NormalizeKey(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
	}
	return out
}
