// Package keyword provides full-text search over extracted rules.
package keyword

import (
	"context"

	"github.com/hyperjump/interviewd/internal/models"
)

// SearchOptions tune a rule search. Nil means defaults.
type SearchOptions struct {
	// SessionID restricts hits to one session when set.
	SessionID string
	// TextBoost multiplies matches in the rendered rule text over trigger and action matches.
	TextBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (default 1).
	FuzzyEnabled bool
	Fuzziness    int
}

// Result is a single rule hit.
type Result struct {
	RuleID    string
	SessionID string
	Score     float64
}

// RuleIndex indexes extracted rules for keyword search.
type RuleIndex interface {
	IndexRules(rules []*models.ExtractedRule) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	DeleteSession(sessionID string) error
	DocCount() (uint64, error)
	Close() error
}

// TermDictionary exposes indexed terms to the spell checker.
type TermDictionary interface {
	AllTerms() ([]string, error)
	TermFrequency(term string) (int, error)
}

// Versioned is implemented by dictionaries that count their writes.
type Versioned interface {
	Generation() uint64
}
