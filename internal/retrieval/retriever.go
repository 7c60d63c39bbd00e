// Package retrieval selects document context for interview prompts and rule extraction.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/embedding"
	"github.com/hyperjump/interviewd/internal/metrics"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/vector"
	"github.com/hyperjump/interviewd/pkg/utils"
	"go.uber.org/zap"
)

// Retriever answers targeted queries and builds session-wide document context.
// It never returns errors: store or embedding failures are logged and yield no chunks.
type Retriever struct {
	embedder embedding.Embedder
	store    vector.Store
	config   config.RetrievalConfig
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever over store.
func NewRetriever(embedder embedding.Embedder, store vector.Store, cfg config.RetrievalConfig, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retriever) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout > 0 {
		return context.WithTimeout(ctx, r.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// Retrieve returns up to k chunks of the session most similar to query, best first.
// Chunks below the similarity floor are dropped. k <= 0 uses the configured top_k.
func (r *Retriever) Retrieve(ctx context.Context, query, sessionID string, k int) []models.RetrievedChunk {
	if k <= 0 {
		k = r.config.TopK
	}
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("retrieval query embedding failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	hits, err := r.store.Query(ctx, vec, k, vector.SessionFilter(sessionID))
	if err != nil {
		r.logger.Warn("retrieval query failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}

	out := make([]models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		sim := h.Similarity()
		if sim < r.config.SimilarityFloor {
			continue
		}
		out = append(out, toRetrieved(h.Record, sim))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > k {
		out = out[:k]
	}
	metrics.RetrievalResults.WithLabelValues("targeted").Observe(float64(len(out)))
	r.logger.Debug("retrieval targeted",
		zap.String("session_id", sessionID),
		zap.Int("hits", len(hits)),
		zap.Int("kept", len(out)))
	return out
}

// BulkContext returns a sample of every document in the session, grouped by document and in
// chunk order. Similarity is not scored.
func (r *Retriever) BulkContext(ctx context.Context, sessionID string) []models.RetrievedChunk {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	records, err := r.store.List(ctx, vector.SessionFilter(sessionID))
	if err != nil {
		r.logger.Warn("retrieval bulk listing failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}

	byDoc := make(map[string][]models.RetrievedChunk)
	var order []string
	for _, rec := range records {
		c := toRetrieved(rec, 0)
		if _, ok := byDoc[c.DocumentID]; !ok {
			order = append(order, c.DocumentID)
		}
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}
	sort.Slice(order, func(i, j int) bool {
		ti, tj := byDoc[order[i]][0].DocumentTitle, byDoc[order[j]][0].DocumentTitle
		if ti != tj {
			return ti < tj
		}
		return order[i] < order[j]
	})

	var out []models.RetrievedChunk
	for _, id := range order {
		chunks := byDoc[id]
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
		out = append(out, Sample(chunks, r.config.SmallCutoff, r.config.MediumCutoff)...)
	}
	metrics.RetrievalResults.WithLabelValues("bulk").Observe(float64(len(out)))
	r.logger.Debug("retrieval bulk context",
		zap.String("session_id", sessionID),
		zap.Int("documents", len(order)),
		zap.Int("chunks", len(out)))
	return out
}

// SessionContext is BulkContext rendered with FormatContext.
func (r *Retriever) SessionContext(ctx context.Context, sessionID string) string {
	return FormatContext(r.BulkContext(ctx, sessionID), r.config.MaxChunkChars, r.config.MaxContextChars)
}

// FormatContext renders chunks as a document context block. Each chunk is cut to maxChunkChars
// and chunks stop being added once the block would exceed maxContextChars; non-positive limits
// disable truncation. No chunks render as the empty string.
func FormatContext(chunks []models.RetrievedChunk, maxChunkChars, maxContextChars int) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("DOCUMENT CONTEXT (uploaded by the expert for this interview):")
	header := b.Len()
	for _, c := range chunks {
		entry := fmt.Sprintf("\n\n[%s]\n%s", sourceLabel(c), utils.Truncate(strings.TrimSpace(c.Content), maxChunkChars))
		if maxContextChars > 0 && b.Len()+len(entry) > maxContextChars {
			break
		}
		b.WriteString(entry)
	}
	if b.Len() == header {
		return ""
	}
	return b.String()
}

func sourceLabel(c models.RetrievedChunk) string {
	label := "Document: " + c.DocumentTitle
	switch {
	case c.Page > 0:
		label += fmt.Sprintf(", page %d", c.Page)
	case c.Slide > 0:
		label += fmt.Sprintf(", slide %d", c.Slide)
	}
	return label
}

func toRetrieved(rec vector.Record, similarity float64) models.RetrievedChunk {
	c := vector.ChunkFromRecord(rec)
	return models.RetrievedChunk{
		ChunkID:       c.ID,
		DocumentID:    c.DocumentID,
		DocumentTitle: c.Title,
		ChunkIndex:    c.ChunkIndex,
		Content:       c.Content,
		Similarity:    similarity,
		Page:          c.PageNumber,
		Slide:         c.SlideNumber,
	}
}
