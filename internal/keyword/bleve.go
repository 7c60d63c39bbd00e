package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/interviewd/internal/models"
)

var textFields = []string{"text", "trigger", "action"}

const deletePageSize = 500

// ruleDoc is the indexed form of a rule.
type ruleDoc struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Trigger   string `json:"trigger"`
	Action    string `json:"action"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Expert    string `json:"expert"`
}

// BleveIndex implements RuleIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
	gen   atomic.Uint64
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is reused, so rules
// indexed by earlier runs stay searchable.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, ruleMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex creates an in-memory index, used by tests and the mock setup.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(ruleMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func ruleMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) keeps "bedtime" distinct from "bed".
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, f := range textFields {
		doc.AddFieldMappingsAt(f, text)
	}
	kw := bleve.NewKeywordFieldMapping()
	for _, f := range []string{"session_id", "category", "priority", "expert"} {
		doc.AddFieldMappingsAt(f, kw)
	}
	im.AddDocumentMapping("rule", doc)
	im.DefaultType = "rule"
	im.DefaultMapping = doc
	return im
}

// IndexRules indexes rules by id in one batch. Re-indexing a rule replaces it.
func (b *BleveIndex) IndexRules(rules []*models.ExtractedRule) error {
	if len(rules) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, r := range rules {
		if err := batch.Index(r.ID, ruleDoc{
			SessionID: r.SessionID,
			Text:      r.Text,
			Trigger:   r.Trigger,
			Action:    r.Action,
			Category:  r.Category,
			Priority:  r.Priority,
			Expert:    r.ExpertName,
		}); err != nil {
			return fmt.Errorf("failed to index rule %s: %w", r.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index rules: %w", err)
	}
	b.gen.Add(1)
	return nil
}

// Search matches query against rule text, trigger and action and returns up to limit hits.
// Text matches are weighted by opts.TextBoost (default 2). For multi-term queries, hits that
// match only some of the terms are penalized by the squared share of matched terms.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	textBoost := 2.0
	fuzziness := 0
	var sessionID string
	if opts != nil {
		if opts.TextBoost > 0 {
			textBoost = opts.TextBoost
		}
		if opts.FuzzyEnabled {
			fuzziness = 1
			if opts.Fuzziness > 0 {
				fuzziness = opts.Fuzziness
			}
		}
		sessionID = opts.SessionID
	}

	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	fieldQueries := make([]blevequery.Query, 0, len(textFields))
	for _, f := range textFields {
		q := termsQuery(terms, f, fuzziness)
		if f == "text" {
			if bq, ok := q.(blevequery.BoostableQuery); ok {
				bq.SetBoost(textBoost)
			}
		}
		fieldQueries = append(fieldQueries, q)
	}
	var q blevequery.Query = bleve.NewDisjunctionQuery(fieldQueries...)
	if sessionID != "" {
		q = bleve.NewConjunctionQuery(q, sessionFilter(sessionID))
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	req := bleve.NewSearchRequestOptions(q, reqSize, 0, false)
	req.Fields = []string{"session_id"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	var coverage map[string]int
	if len(terms) > 1 {
		coverage = b.termCoverage(ctx, terms, fuzziness, sessionID, reqSize)
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		score := hit.Score
		if len(terms) > 1 {
			matched := coverage[hit.ID]
			if matched == 0 {
				matched = 1
			}
			share := float64(matched) / float64(len(terms))
			score *= share * share
		}
		sid, _ := hit.Fields["session_id"].(string)
		out = append(out, &Result{RuleID: hit.ID, SessionID: sid, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// termsQuery matches any of terms in field, fuzzily when fuzziness > 0.
func termsQuery(terms []string, field string, fuzziness int) blevequery.Query {
	if fuzziness == 0 {
		mq := bleve.NewMatchQuery(strings.Join(terms, " "))
		mq.SetField(field)
		return mq
	}
	qs := make([]blevequery.Query, 0, len(terms))
	for _, t := range terms {
		fq := bleve.NewFuzzyQuery(t)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		qs = append(qs, fq)
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func sessionFilter(sessionID string) blevequery.Query {
	tq := bleve.NewTermQuery(sessionID)
	tq.SetField("session_id")
	return tq
}

// termCoverage counts how many distinct query terms each rule matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, fuzziness int, sessionID string, size int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		perField := make([]blevequery.Query, 0, len(textFields))
		for _, f := range textFields {
			perField = append(perField, termsQuery([]string{term}, f, fuzziness))
		}
		var q blevequery.Query = bleve.NewDisjunctionQuery(perField...)
		if sessionID != "" {
			q = bleve.NewConjunctionQuery(q, sessionFilter(sessionID))
		}
		res, err := b.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, size, 0, false))
		if err != nil {
			continue
		}
		for _, hit := range res.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// DeleteSession removes every rule of a session.
func (b *BleveIndex) DeleteSession(sessionID string) error {
	for {
		req := bleve.NewSearchRequestOptions(sessionFilter(sessionID), deletePageSize, 0, false)
		res, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("failed to find session rules: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete session rules: %w", err)
		}
		b.gen.Add(1)
	}
}

// Generation increases on every write, so term caches know when to reload.
func (b *BleveIndex) Generation() uint64 {
	return b.gen.Load()
}

// DocCount returns the number of indexed rules.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// AllTerms returns the unique terms of the text fields.
func (b *BleveIndex) AllTerms() ([]string, error) {
	seen := make(map[string]struct{})
	var terms []string
	for _, f := range textFields {
		dict, err := b.index.FieldDict(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s terms: %w", f, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if _, ok := seen[entry.Term]; !ok {
				seen[entry.Term] = struct{}{}
				terms = append(terms, entry.Term)
			}
		}
		_ = dict.Close()
	}
	return terms, nil
}

// TermFrequency returns how many rules contain term in any text field.
func (b *BleveIndex) TermFrequency(term string) (int, error) {
	perField := make([]blevequery.Query, 0, len(textFields))
	for _, f := range textFields {
		perField = append(perField, termsQuery([]string{term}, f, 0))
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(perField...), 0, 0, false)
	res, err := b.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to search for term frequency: %w", err)
	}
	return int(res.Total), nil
}

var (
	_ RuleIndex      = (*BleveIndex)(nil)
	_ TermDictionary = (*BleveIndex)(nil)
)
