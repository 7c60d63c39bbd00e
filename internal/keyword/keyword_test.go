package keyword

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/interviewd/internal/models"
)

func rule(id, session, text, trigger, action string) *models.ExtractedRule {
	return &models.ExtractedRule{ID: id, SessionID: session, Text: text, Trigger: trigger, Action: action, Category: "general"}
}

func newIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.IndexRules([]*models.ExtractedRule{
		rule("r1", "1", "When child refuses homework, Jamie should offer a short break.", "child refuses homework", "offer a short break"),
		rule("r2", "1", "When bedtime approaches, Jamie should dim the lights.", "bedtime approaches", "dim the lights"),
		rule("r3", "2", "When homework is finished, Jamie should praise effort.", "homework is finished", "praise effort"),
	}); err != nil {
		t.Fatalf("IndexRules: %v", err)
	}
	return idx
}

func ids(results []*Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.RuleID
	}
	return out
}

func TestBleveIndex_Search(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()

	results, err := idx.Search(ctx, "homework", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("homework hits = %v, want r1 and r3", ids(results))
	}

	results, err = idx.Search(ctx, "homework", 10, &SearchOptions{SessionID: "2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].RuleID != "r3" || results[0].SessionID != "2" {
		t.Errorf("session filtered hits = %v", ids(results))
	}
}

func TestBleveIndex_SearchPrefersFullCoverage(t *testing.T) {
	idx := newIndex(t)
	results, err := idx.Search(context.Background(), "homework break", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) < 2 || results[0].RuleID != "r1" {
		t.Errorf("hits = %v, want r1 first", ids(results))
	}
}

func TestBleveIndex_SearchFuzzy(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()

	results, err := idx.Search(ctx, "bedtme", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("exact search for a typo should miss, got %v", ids(results))
	}
	results, err = idx.Search(ctx, "bedtme", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].RuleID != "r2" {
		t.Errorf("fuzzy hits = %v, want r2", ids(results))
	}
}

func TestBleveIndex_SearchEmptyQuery(t *testing.T) {
	idx := newIndex(t)
	results, err := idx.Search(context.Background(), "   ", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for blank query", len(results))
	}
}

func TestBleveIndex_DeleteSession(t *testing.T) {
	idx := newIndex(t)
	if err := idx.DeleteSession("1"); err != nil {
		t.Fatal(err)
	}
	n, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("doc count = %d, want 1", n)
	}
	results, err := idx.Search(context.Background(), "bedtime", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("deleted session still searchable: %v", ids(results))
	}
}

func TestBleveIndex_reindexReplaces(t *testing.T) {
	idx := newIndex(t)
	if err := idx.IndexRules([]*models.ExtractedRule{rule("r2", "1", "When tired, Jamie should suggest a nap.", "tired", "suggest a nap")}); err != nil {
		t.Fatal(err)
	}
	n, _ := idx.DocCount()
	if n != 3 {
		t.Errorf("doc count = %d, want 3", n)
	}
	results, _ := idx.Search(context.Background(), "bedtime", 10, nil)
	if len(results) != 0 {
		t.Errorf("replaced rule still matches old text: %v", ids(results))
	}
}

func TestNewBleveIndex_reopensExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "rules.bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.IndexRules([]*models.ExtractedRule{rule("r1", "1", "Jamie should praise effort.", "", "")}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("index path should exist: %v", err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	results, err := reopened.Search(context.Background(), "praise", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("reopened index lost rules: %v", ids(results))
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"bedtime", "bedtime", 0},
		{"bedtme", "bedtime", 1},
		{"kitten", "sitting", 3},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

type fakeDict struct {
	freq map[string]int
	err  error
}

func (d fakeDict) AllTerms() ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make([]string, 0, len(d.freq))
	for t := range d.freq {
		out = append(out, t)
	}
	return out, nil
}

func (d fakeDict) TermFrequency(term string) (int, error) { return d.freq[term], nil }

func TestSpellChecker_Suggest(t *testing.T) {
	sc := NewSpellChecker(fakeDict{freq: map[string]int{"reward": 4, "rewind": 1, "homework": 2, "toward": 9}})
	got := sc.Suggest("rewrd")
	if len(got) == 0 || got[0].Term != "reward" {
		t.Fatalf("suggestions = %+v, want reward first", got)
	}
	if got[0].Distance != 1 {
		t.Errorf("distance = %d, want 1", got[0].Distance)
	}

	limited := NewSpellChecker(fakeDict{freq: map[string]int{"reward": 4, "rewards": 1}}, WithMaxSuggestions(1))
	if n := len(limited.Suggest("rewar")); n != 1 {
		t.Errorf("limited suggestions = %d, want 1", n)
	}

	rare := NewSpellChecker(fakeDict{freq: map[string]int{"reward": 1}}, WithMinFrequency(2))
	if got := rare.Suggest("rewrd"); len(got) != 0 {
		t.Errorf("rare terms should be ignored, got %+v", got)
	}

	strict := NewSpellChecker(fakeDict{freq: map[string]int{"homework": 2}}, WithMaxDistance(1))
	if got := strict.Suggest("homwrk"); len(got) != 0 {
		t.Errorf("distance 2 exceeds max, got %+v", got)
	}
}

func TestSpellChecker_Correct(t *testing.T) {
	sc := NewSpellChecker(fakeDict{freq: map[string]int{"bedtime": 3, "routine": 2}})
	got, changed, err := sc.Correct("Bedtme routine")
	if err != nil {
		t.Fatal(err)
	}
	if !changed || got != "bedtime routine" {
		t.Errorf("Correct = %q, %v", got, changed)
	}

	got, changed, _ = sc.Correct("routine")
	if changed || got != "routine" {
		t.Errorf("known term changed: %q", got)
	}

	failing := NewSpellChecker(fakeDict{err: errors.New("closed")})
	if _, _, err := failing.Correct("x"); err == nil {
		t.Error("expected dictionary error")
	}
}

func TestSpellChecker_againstIndex(t *testing.T) {
	idx := newIndex(t)
	sc := NewSpellChecker(idx)
	got, changed, err := sc.Correct("homewrk")
	if err != nil {
		t.Fatal(err)
	}
	if !changed || got != "homework" {
		t.Errorf("Correct = %q, %v", got, changed)
	}
}

func TestSpellChecker_reloadsAfterIndexWrites(t *testing.T) {
	idx := newIndex(t)
	sc := NewSpellChecker(idx)
	if _, changed, _ := sc.Correct("tantrm"); changed {
		t.Fatal("no close term should exist yet")
	}

	before := idx.Generation()
	if err := idx.IndexRules([]*models.ExtractedRule{
		rule("r4", "3", "When a tantrum starts, Jamie should stay calm.", "tantrum starts", "stay calm"),
	}); err != nil {
		t.Fatal(err)
	}
	if idx.Generation() == before {
		t.Error("generation should advance on write")
	}
	got, changed, err := sc.Correct("tantrm")
	if err != nil {
		t.Fatal(err)
	}
	if !changed || got != "tantrum" {
		t.Errorf("Correct after reindex = %q, %v", got, changed)
	}
}
