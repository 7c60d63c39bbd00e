package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hyperjump/interviewd/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same embedding.
// Texts containing a registered failure marker return an error, and batches containing one fail whole.
type MockEmbedder struct {
	dimensions int
	mu         sync.Mutex
	failOn     []string
	calls      int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// FailOn makes every text containing marker fail to embed.
func (e *MockEmbedder) FailOn(marker string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn = append(e.failOn, marker)
}

// Calls returns how many Embed and EmbedBatch calls were made.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns a deterministic unit vector based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.embed(ctx, text)
}

func (e *MockEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	for _, marker := range e.failOn {
		if strings.Contains(text, marker) {
			e.mu.Unlock()
			return nil, fmt.Errorf("mock embedding failure for %q", marker)
		}
	}
	e.mu.Unlock()

	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds each text; any failure fails the whole batch.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
