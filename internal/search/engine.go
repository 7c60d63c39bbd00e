// Package search answers full-text queries over extracted rules.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/interviewd/internal/keyword"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/storage"
)

// RuleSource resolves indexed rule ids to stored rules.
type RuleSource interface {
	GetRule(ctx context.Context, id string) (*models.ExtractedRule, error)
}

// Engine runs keyword search over the rule index and hydrates hits from storage.
type Engine struct {
	rules   RuleSource
	index   keyword.RuleIndex
	speller *keyword.SpellChecker
	fuzzy   bool
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSpellChecker retries queries that match nothing with a spelling correction.
func WithSpellChecker(s *keyword.SpellChecker) Option {
	return func(e *Engine) { e.speller = s }
}

// WithFuzzy enables fuzzy term matching.
func WithFuzzy(enabled bool) Option {
	return func(e *Engine) { e.fuzzy = enabled }
}

// NewEngine creates a rule search engine.
func NewEngine(rules RuleSource, index keyword.RuleIndex, opts ...Option) *Engine {
	e := &Engine{
		rules:  rules,
		index:  index,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates query, searches the index and returns rules ordered by score.
func (e *Engine) Search(ctx context.Context, query *models.RuleSearchQuery) (*models.RuleSearchResponse, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}
	opts := &keyword.SearchOptions{SessionID: query.SessionID, FuzzyEnabled: e.fuzzy}

	results, err := e.index.Search(ctx, query.Query, query.Limit, opts)
	if err != nil {
		return nil, fmt.Errorf("rule search failed: %w", err)
	}

	resp := &models.RuleSearchResponse{Query: query.Query}
	if len(results) == 0 && e.speller != nil {
		corrected, changed, err := e.speller.Correct(query.Query)
		if err != nil {
			e.logger.Warn("search spell check failed", zap.Error(err))
		} else if changed {
			results, err = e.index.Search(ctx, corrected, query.Limit, opts)
			if err != nil {
				return nil, fmt.Errorf("rule search failed: %w", err)
			}
			if len(results) > 0 {
				resp.CorrectedQuery = corrected
			}
		}
	}

	scores := NormalizeScores(results)
	resp.Hits = make([]*models.RuleHit, 0, len(results))
	for _, r := range results {
		rule, err := e.rules.GetRule(ctx, r.RuleID)
		if err != nil {
			if errors.Is(err, storage.ErrRuleNotFound) {
				// index entry outlived its rule
				e.logger.Debug("search skipped stale rule", zap.String("rule_id", r.RuleID))
				continue
			}
			return nil, fmt.Errorf("failed to load rule %s: %w", r.RuleID, err)
		}
		resp.Hits = append(resp.Hits, &models.RuleHit{Rule: rule, Score: scores[r.RuleID]})
	}
	resp.Total = len(resp.Hits)
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}
