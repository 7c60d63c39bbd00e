// Package indexer splits uploaded documents into passages and ingests them into the vector store.
package indexer

import "strings"

// DefaultDelimiter is the sentence boundary the chunker splits on.
const DefaultDelimiter = ". "

// Chunker greedily packs sentences into passages of at most maxTokens estimated tokens.
// A single sentence longer than maxTokens becomes its own oversized passage; it is never split.
type Chunker struct {
	maxTokens int
	delimiter string
	estimator TokenEstimator
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithEstimator replaces the default character-based estimator.
func WithEstimator(e TokenEstimator) ChunkerOption {
	return func(c *Chunker) { c.estimator = e }
}

// WithDelimiter replaces the sentence delimiter.
func WithDelimiter(d string) ChunkerOption {
	return func(c *Chunker) {
		if d != "" {
			c.delimiter = d
		}
	}
}

// NewChunker creates a chunker with the given token budget (500 when non-positive).
func NewChunker(maxTokens int, opts ...ChunkerOption) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	c := &Chunker{
		maxTokens: maxTokens,
		delimiter: DefaultDelimiter,
		estimator: CharEstimator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits text into ordered passages. Every sentence keeps its delimiter and passages are
// trimmed; blank input yields no passages.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var (
		chunks  []string
		current strings.Builder
	)
	for _, sentence := range strings.Split(text, c.delimiter) {
		unit := sentence + c.delimiter
		if current.Len() > 0 && c.estimator.Estimate(current.String()+sentence) > c.maxTokens {
			if passage := strings.TrimSpace(current.String()); passage != "" {
				chunks = append(chunks, passage)
			}
			current.Reset()
		}
		current.WriteString(unit)
	}
	if passage := strings.TrimSpace(current.String()); passage != "" {
		chunks = append(chunks, passage)
	}
	return chunks
}
