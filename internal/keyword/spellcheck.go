package keyword

import (
	"sort"
	"strings"
	"sync"
)

// Suggestion is a dictionary term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// SpellChecker proposes corrections for rule search queries from the indexed vocabulary.
// The vocabulary is cached until Invalidate is called or, for a Versioned dictionary, until
// the dictionary changes.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	maxSuggestions int

	mu    sync.RWMutex
	terms []string
	set   map[string]struct{}
	valid bool
	gen   uint64
}

// SpellCheckerOption configures a SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the largest edit distance considered a typo.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores dictionary terms found in fewer than f rules.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// WithMaxSuggestions caps suggestions per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a spell checker over dict.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached vocabulary; the next lookup reloads it.
func (s *SpellChecker) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

func (s *SpellChecker) generation() uint64 {
	if v, ok := s.dictionary.(Versioned); ok {
		return v.Generation()
	}
	return 0
}

func (s *SpellChecker) load() ([]string, map[string]struct{}, error) {
	gen := s.generation()
	s.mu.RLock()
	if s.valid && s.gen == gen {
		terms, set := s.terms, s.set
		s.mu.RUnlock()
		return terms, set, nil
	}
	s.mu.RUnlock()

	terms, err := s.dictionary.AllTerms()
	if err != nil {
		return nil, nil, err
	}
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	s.mu.Lock()
	s.terms, s.set, s.valid, s.gen = terms, set, true, gen
	s.mu.Unlock()
	return terms, set, nil
}

// Correct returns query with each unknown term replaced by its best suggestion, and whether
// anything changed.
func (s *SpellChecker) Correct(query string) (string, bool, error) {
	_, set, err := s.load()
	if err != nil {
		return query, false, err
	}
	terms := tokenizeQuery(query)
	changed := false
	for i, term := range terms {
		if _, ok := set[term]; ok {
			continue
		}
		if sugg := s.Suggest(term); len(sugg) > 0 {
			terms[i] = sugg[0].Term
			changed = true
		}
	}
	if !changed {
		return query, false, nil
	}
	return strings.Join(terms, " "), true, nil
}

// Suggest returns dictionary terms within the edit distance of term, best first. Closer and
// more frequent terms rank higher.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	terms, _, err := s.load()
	if err != nil {
		return nil
	}
	term = strings.ToLower(term)
	var out []Suggestion
	for _, candidate := range terms {
		lower := strings.ToLower(candidate)
		if lower == term {
			continue
		}
		diff := len(lower) - len(term)
		if diff < 0 {
			diff = -diff
		}
		if diff > s.maxDistance {
			continue
		}
		d := LevenshteinDistance(term, lower)
		if d > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.TermFrequency(candidate)
		if err != nil || freq < s.minFreq {
			continue
		}
		out = append(out, Suggestion{
			Term:      candidate,
			Distance:  d,
			Frequency: freq,
			Score:     float64(freq) / float64(d+1),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}
