package models

import (
	"fmt"
	"strings"
)

// RuleSearchQuery is a full-text search over extracted rules.
type RuleSearchQuery struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Validate ensures the query is non-empty and clamps the limit to [1,100], defaulting to 10.
func (q *RuleSearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// RuleHit is one rule search result.
type RuleHit struct {
	Rule  *ExtractedRule `json:"rule"`
	Score float64        `json:"score"`
}

// RuleSearchResponse is the result of a rule search. CorrectedQuery is set when the original
// query matched nothing and a spelling correction was searched instead.
type RuleSearchResponse struct {
	Query          string     `json:"query"`
	CorrectedQuery string     `json:"corrected_query,omitempty"`
	Hits           []*RuleHit `json:"hits"`
	Total          int        `json:"total"`
	QueryTime      int64      `json:"query_time_ms"`
}
