package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

func TestCachedEmbedder_servesRepeatsFromCache(t *testing.T) {
	mock := NewMockEmbedder(8)
	e := NewCachedEmbedder(mock, 10)
	ctx := context.Background()

	first, err := e.Embed(ctx, "bedtime routine")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := e.Embed(ctx, "bedtime routine")
	if mock.Calls() != 1 {
		t.Errorf("expected 1 underlying call, got %d", mock.Calls())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached vector differs")
		}
	}

	vecs, err := e.EmbedBatch(ctx, []string{"bedtime routine", "sticker chart"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || len(vecs[1]) != 8 {
		t.Fatalf("unexpected batch result %v", vecs)
	}
	if mock.Calls() != 2 {
		t.Errorf("batch should embed only the miss, calls=%d", mock.Calls())
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
}
