package indexer

import (
	"strings"
	"testing"
)

func TestChunker_Chunk(t *testing.T) {
	// 40 chars per sentence with the delimiter = 10 estimated tokens.
	sentence := strings.Repeat("a", 38)
	text := strings.Join([]string{sentence, sentence, sentence, sentence}, ". ")
	c := NewChunker(20)
	chunks := c.Chunk(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	for i, ch := range chunks {
		if strings.HasSuffix(ch, " ") || strings.HasPrefix(ch, " ") {
			t.Errorf("chunk %d should be trimmed: %q", i, ch)
		}
		if !strings.HasSuffix(ch, ".") {
			t.Errorf("chunk %d should keep the delimiter: %q", i, ch)
		}
	}
}

func TestChunker_singleShortText(t *testing.T) {
	chunks := NewChunker(500).Chunk("Praise effort, not outcome")
	if len(chunks) != 1 || chunks[0] != "Praise effort, not outcome." {
		t.Errorf("got %q", chunks)
	}
}

func TestChunker_oversizedSentenceIsNotSplit(t *testing.T) {
	long := strings.Repeat("word ", 200)
	chunks := NewChunker(10).Chunk("Short one. " + long + ". Tail")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[1], strings.TrimSpace(long)) {
		t.Error("oversized sentence should be kept whole")
	}
}

func TestChunker_ChunkEmpty(t *testing.T) {
	c := NewChunker(5)
	if chunks := c.Chunk("   \n\t  "); chunks != nil {
		t.Errorf("blank text should return nil, got %v", chunks)
	}
	if chunks := c.Chunk(""); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestChunker_contentPreserved(t *testing.T) {
	text := "First rule here. Second rule follows. Third one closes"
	chunks := NewChunker(5).Chunk(text)
	joined := strings.Join(chunks, " ")
	for _, want := range []string{"First rule here", "Second rule follows", "Third one closes"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %q", want, chunks)
		}
	}
}

type wordEstimator struct{}

func (wordEstimator) Estimate(text string) int { return len(strings.Fields(text)) }

func TestChunker_customEstimatorAndDelimiter(t *testing.T) {
	c := NewChunker(3, WithEstimator(wordEstimator{}), WithDelimiter("; "))
	chunks := c.Chunk("one two; three four; five six")
	if len(chunks) != 3 {
		t.Fatalf("got %q", chunks)
	}
	if chunks[0] != "one two;" {
		t.Errorf("chunks[0] = %q", chunks[0])
	}
}

func TestNewEstimator(t *testing.T) {
	e, err := NewEstimator("chars")
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Estimate("abcdefgh"); got != 2 {
		t.Errorf("chars estimate = %d, want 2", got)
	}
	if _, err := NewEstimator("words"); err == nil {
		t.Error("expected error for unknown estimator")
	}
}

func TestTiktokenEstimator(t *testing.T) {
	e, err := NewEstimator("tiktoken")
	if err != nil {
		t.Fatal(err)
	}
	if e.Estimate("") != 0 {
		t.Error("empty text should be 0 tokens")
	}
	if n := e.Estimate("hello world"); n != 2 {
		t.Errorf("hello world = %d tokens, want 2", n)
	}
}
