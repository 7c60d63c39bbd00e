package search

import "github.com/hyperjump/interviewd/internal/keyword"

// NormalizeScores maps rule id to score divided by the best score, so the top hit scores 1.
func NormalizeScores(results []*keyword.Result) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.RuleID] = r.Score / maxScore
		} else {
			normalized[r.RuleID] = 0
		}
	}
	return normalized
}
