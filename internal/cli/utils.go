// Package cli formats interviewd data for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const ruleWidth = 200

// ParseFormat maps a --output flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRules writes rules in the given format.
func WriteRules(w io.Writer, rules []*models.ExtractedRule, format OutputFormat) error {
	if format == OutputJSON {
		if rules == nil {
			rules = []*models.ExtractedRule{}
		}
		return writeJSON(w, rules)
	}
	if len(rules) == 0 {
		fmt.Fprintln(w, "No rules.")
		return nil
	}
	fmt.Fprintf(w, "%d rule(s)\n\n", len(rules))
	for i, r := range rules {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, r.Status, utils.Truncate(r.Text, ruleWidth))
		var meta []string
		if r.SessionID != "" {
			meta = append(meta, "session "+r.SessionID)
		}
		if r.Category != "" {
			meta = append(meta, "category "+r.Category)
		}
		if r.Priority != "" {
			meta = append(meta, "priority "+r.Priority)
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "   %s | id %s\n", strings.Join(meta, ", "), r.ID)
		}
	}
	return nil
}

// WriteRuleSearch writes rule search results in the given format.
func WriteRuleSearch(w io.Writer, resp *models.RuleSearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d rule(s) in %dms\n", resp.Total, resp.QueryTime)
	if resp.CorrectedQuery != "" {
		fmt.Fprintf(w, "Showing results for %q (no matches for %q)\n", resp.CorrectedQuery, resp.Query)
	}
	fmt.Fprintln(w)
	for i, h := range resp.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Session: %s\n", i+1, h.Score, h.Rule.SessionID)
		fmt.Fprintf(w, "%s\n\n", utils.Truncate(h.Rule.Text, ruleWidth))
	}
	return nil
}

// WriteSessions writes session summaries in the given format.
func WriteSessions(w io.Writer, sessions []*models.SessionSummary, format OutputFormat) error {
	if format == OutputJSON {
		if sessions == nil {
			sessions = []*models.SessionSummary{}
		}
		return writeJSON(w, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	fmt.Fprintf(w, "%-6s %-24s %-20s %-9s %-12s %s\n", "ID", "EXPERT", "AREA", "QUESTIONS", "STATE", "CREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%-6s %-24s %-20s %-9d %-12s %s\n",
			s.ID,
			utils.Truncate(s.ExpertName, 24),
			utils.Truncate(s.ExpertiseArea, 20),
			s.QuestionsAsked,
			s.State,
			s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// WriteTranscript writes a session transcript in the given format.
func WriteTranscript(w io.Writer, sess *models.InterviewSession, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sess)
	}
	fmt.Fprintf(w, "Session %s: %s (%s), %s\n\n", sess.ID, sess.Expert.Name, sess.Expert.ExpertiseArea, sess.State)
	for _, t := range sess.Transcript {
		speaker := "Expert"
		if t.Role == models.RoleInterviewer {
			speaker = "Interviewer"
		}
		fmt.Fprintf(w, "%s: %s\n\n", speaker, t.Content)
	}
	return nil
}

// WriteDocumentStats writes a session's document summary in the given format.
func WriteDocumentStats(w io.Writer, stats *models.DocumentStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Session %s: %d document(s), %d chunk(s)\n", stats.SessionID, len(stats.Documents), stats.TotalChunks)
	for _, d := range stats.Documents {
		fmt.Fprintf(w, "  %-40s %-5s %4d chunks  %s\n", utils.Truncate(d.Title, 40), d.DocType, d.Chunks, d.DocumentID)
	}
	return nil
}
