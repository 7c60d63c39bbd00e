package vector

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/interviewd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromemStore_roundTrip(t *testing.T) {
	s, err := NewChromemStore("", "chunks", false, 3)
	require.NoError(t, err)
	defer s.Close()
	seed(t, s)
	ctx := context.Background()

	assert.Equal(t, 3, s.Count())

	hits, err := s.Query(ctx, []float32{1, 0, 0}, 10, SessionFilter("1"))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)

	found, err := s.Exists(ctx, []string{"a", "nope"})
	require.NoError(t, err)
	assert.True(t, found["a"])
	assert.False(t, found["nope"])

	list, err := s.List(ctx, SessionFilter("2"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "gamma", list[0].Content)

	n, err := s.Delete(ctx, SessionFilter("1"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.Count())

	require.NoError(t, s.DeleteIDs(ctx, []string{"c"}))
	assert.Zero(t, s.Count())

	hits, err = s.Query(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemStore_persists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewChromemStore(dir, "chunks", false, 3)
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	reopened, err := NewChromemStore(dir, "chunks", false, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Count())
}

func TestChromemStore_rejectsWrongDimension(t *testing.T) {
	s, err := NewChromemStore("", "chunks", false, 3)
	require.NoError(t, err)
	err = s.Upsert(context.Background(), []Record{{ID: "x", Embedding: []float32{1, 2}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChunkRecordConversion(t *testing.T) {
	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	chunk := &models.DocumentChunk{
		ID:         "7_plan.pdf_2_abcd1234",
		DocumentID: "doc:1",
		SessionID:  "7",
		ChunkIndex: 2,
		Content:    "Use a visual schedule.",
		Title:      "plan.pdf",
		DocType:    "pdf",
		ExpertName: "Dr. Lee",
		PageNumber: 3,
		FileSize:   2048,
		UploadedAt: uploaded,
		Embedding:  []float32{0.1, 0.2, 0.3},
	}
	r := RecordFromChunk(chunk)
	assert.Equal(t, "7", r.Metadata[MetaSessionID])
	assert.Equal(t, "2", r.Metadata[MetaChunkIndex])
	assert.Equal(t, "3", r.Metadata[MetaPageNumber])
	assert.NotContains(t, r.Metadata, MetaSlideNumber)

	back := ChunkFromRecord(r)
	assert.Equal(t, chunk, back)
}
