package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/embedding"
	"github.com/hyperjump/interviewd/internal/extract"
	"github.com/hyperjump/interviewd/internal/fileid"
	"github.com/hyperjump/interviewd/internal/metrics"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/storage"
	"github.com/hyperjump/interviewd/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrExtensionNotAllowed is returned for uploads outside ingestion.allowed_extensions.
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	// ErrFileTooLarge is returned for uploads above ingestion.max_file_size.
	ErrFileTooLarge = errors.New("file too large")
)

// IngestResult reports the outcome of one upload.
type IngestResult struct {
	Success         bool   `json:"success"`
	ChunksProcessed int    `json:"chunks_processed"`
	TotalChunks     int    `json:"total_chunks"`
	Filename        string `json:"filename"`
	DocumentID      string `json:"document_id"`
	Error           string `json:"error,omitempty"`
}

// Indexer ingests uploaded documents into the vector store and records them in durable storage.
type Indexer struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	store     vector.Store
	chunker   *Chunker
	extractor *extract.Extractor
	config    config.IngestionConfig
	logger    *zap.Logger
	now       func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	st storage.Storage,
	embedder embedding.Embedder,
	store vector.Store,
	chunker *Chunker,
	extractor *extract.Extractor,
	cfg config.IngestionConfig,
	opts ...IndexerOption,
) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	idx := &Indexer{
		storage:   st,
		embedder:  embedder,
		store:     store,
		chunker:   chunker,
		extractor: extractor,
		config:    cfg,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Validate checks an upload against the allowed extensions and size limit.
func (idx *Indexer) Validate(filename string, size int64) error {
	ext := extract.Ext(filename)
	if !extensionAllowed(ext, idx.config.AllowedExtensions) {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrExtensionNotAllowed, ext, strings.Join(idx.config.AllowedExtensions, ", "))
	}
	if idx.config.MaxFileSize > 0 && size > idx.config.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, idx.config.MaxFileSize)
	}
	return nil
}

// Ingest extracts, chunks, embeds and stores content uploaded as filename to a session.
// Validation failures are returned as errors; processing failures are reported in the result.
// Chunks whose id already exists are counted as processed without being re-embedded.
func (idx *Indexer) Ingest(ctx context.Context, content []byte, filename, sessionID string, expert models.ExpertInfo) (*IngestResult, error) {
	filename = filepath.Base(filename)
	if err := idx.Validate(filename, int64(len(content))); err != nil {
		return nil, err
	}
	sess, err := idx.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if expert.Name == "" {
		expert = sess.Expert
	}

	docID := fileid.DocumentID(sessionID, filename)
	result := &IngestResult{Filename: filename, DocumentID: docID}
	doc := &models.Document{
		ID:         docID,
		SessionID:  sessionID,
		Title:      filename,
		DocType:    extract.Ext(filename),
		Size:       int64(len(content)),
		Status:     models.DocumentProcessing,
		UploadedAt: idx.now(),
	}

	sections, err := idx.extractor.ExtractBytes(content, doc.DocType)
	if err != nil {
		return idx.fail(ctx, doc, result, fmt.Sprintf("text extraction failed: %v", err)), nil
	}
	doc.PageCount = extract.PageCount(sections)

	chunks := idx.buildChunks(sections, doc, expert)
	result.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return idx.fail(ctx, doc, result, "no text could be extracted from the document"), nil
	}
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	existing, err := idx.store.Exists(ctx, ids)
	if err != nil {
		idx.logger.Warn("indexer could not check existing chunks", zap.String("document_id", docID), zap.Error(err))
		existing = map[string]bool{}
	}

	var pending []*models.DocumentChunk
	for _, c := range chunks {
		if existing[c.ID] {
			result.ChunksProcessed++
			metrics.ChunksIngested.WithLabelValues("skipped").Inc()
			continue
		}
		pending = append(pending, c)
	}

	var lastErr error
	for start := 0; start < len(pending); start += idx.config.EmbedBatchSize {
		end := start + idx.config.EmbedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		stored, err := idx.storeBatch(ctx, pending[start:end])
		result.ChunksProcessed += stored
		if err != nil {
			lastErr = err
		}
	}

	if result.ChunksProcessed == 0 {
		msg := "no chunks could be stored"
		if lastErr != nil {
			msg += ": " + lastErr.Error()
		}
		return idx.fail(ctx, doc, result, msg), nil
	}
	idx.removeStale(ctx, sessionID, docID, ids)

	result.Success = true
	doc.ChunkCount = result.ChunksProcessed
	doc.Status = models.DocumentReady
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		idx.logger.Warn("indexer could not update document", zap.String("document_id", docID), zap.Error(err))
	}
	idx.logger.Info("indexer document ingested",
		zap.String("session_id", sessionID),
		zap.String("filename", filename),
		zap.Int("chunks_processed", result.ChunksProcessed),
		zap.Int("total_chunks", result.TotalChunks))
	return result, nil
}

// IngestFile reads path from disk and ingests it under its base name.
func (idx *Indexer) IngestFile(ctx context.Context, path, sessionID string, expert models.ExpertInfo) (*IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if err := idx.Validate(path, info.Size()); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.Ingest(ctx, content, filepath.Base(path), sessionID, expert)
}

// buildChunks chunks every section; chunk indices run contiguously across sections.
func (idx *Indexer) buildChunks(sections []extract.Section, doc *models.Document, expert models.ExpertInfo) []*models.DocumentChunk {
	var chunks []*models.DocumentChunk
	for _, sec := range sections {
		for _, passage := range idx.chunker.Chunk(sec.Text) {
			i := len(chunks)
			chunks = append(chunks, &models.DocumentChunk{
				ID:          fileid.ChunkID(doc.SessionID, doc.Title, i, passage),
				DocumentID:  doc.ID,
				SessionID:   doc.SessionID,
				ChunkIndex:  i,
				Content:     passage,
				Title:       doc.Title,
				DocType:     doc.DocType,
				ExpertName:  expert.Name,
				PageNumber:  sec.Page,
				SlideNumber: sec.Slide,
				FileSize:    doc.Size,
				UploadedAt:  doc.UploadedAt,
			})
		}
	}
	return chunks
}

// storeBatch embeds and upserts a batch, falling back to one chunk at a time when the batch
// call fails. It returns how many chunks were stored and the last per-chunk error.
func (idx *Indexer) storeBatch(ctx context.Context, batch []*models.DocumentChunk) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	vecs, err := idx.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) == len(batch) {
		records := make([]vector.Record, len(batch))
		for i, c := range batch {
			c.Embedding = vecs[i]
			records[i] = vector.RecordFromChunk(c)
		}
		upsertErr := idx.store.Upsert(ctx, records)
		if upsertErr == nil {
			metrics.ChunksIngested.WithLabelValues("stored").Add(float64(len(batch)))
			return len(batch), nil
		}
		idx.logger.Warn("indexer batch upsert failed, retrying per chunk", zap.Int("batch", len(batch)), zap.Error(upsertErr))
	} else if err != nil {
		idx.logger.Warn("indexer batch embedding failed, retrying per chunk", zap.Int("batch", len(batch)), zap.Error(err))
	}

	stored := 0
	var lastErr error
	for _, c := range batch {
		if err := idx.storeOne(ctx, c); err != nil {
			lastErr = err
			metrics.ChunksIngested.WithLabelValues("failed").Inc()
			idx.logger.Warn("indexer skipped chunk",
				zap.String("chunk_id", c.ID),
				zap.Int("chunk_index", c.ChunkIndex),
				zap.Error(err))
			continue
		}
		metrics.ChunksIngested.WithLabelValues("stored").Inc()
		stored++
	}
	return stored, lastErr
}

func (idx *Indexer) storeOne(ctx context.Context, c *models.DocumentChunk) error {
	vec, err := idx.embedder.Embed(ctx, c.Content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	c.Embedding = vec
	if err := idx.store.Upsert(ctx, []vector.Record{vector.RecordFromChunk(c)}); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// removeStale deletes chunks left over from an earlier upload of the same file whose content changed.
func (idx *Indexer) removeStale(ctx context.Context, sessionID, docID string, current []string) {
	keep := make(map[string]bool, len(current))
	for _, id := range current {
		keep[id] = true
	}
	records, err := idx.store.List(ctx, vector.DocumentFilter(sessionID, docID))
	if err != nil {
		idx.logger.Warn("indexer could not list previous chunks", zap.String("document_id", docID), zap.Error(err))
		return
	}
	var stale []string
	for _, r := range records {
		if !keep[r.ID] {
			stale = append(stale, r.ID)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := idx.store.DeleteIDs(ctx, stale); err != nil {
		idx.logger.Warn("indexer could not remove stale chunks", zap.String("document_id", docID), zap.Error(err))
		return
	}
	idx.logger.Debug("indexer removed stale chunks", zap.String("document_id", docID), zap.Int("count", len(stale)))
}

func (idx *Indexer) fail(ctx context.Context, doc *models.Document, result *IngestResult, msg string) *IngestResult {
	result.Success = false
	result.Error = msg
	doc.Status = models.DocumentFailed
	doc.ChunkCount = result.ChunksProcessed
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		idx.logger.Warn("indexer could not record failed document", zap.String("document_id", doc.ID), zap.Error(err))
	}
	idx.logger.Warn("indexer ingestion failed",
		zap.String("session_id", doc.SessionID),
		zap.String("filename", doc.Title),
		zap.String("error", msg))
	return result
}

// Stats summarizes the chunks stored for a session, grouped by document.
func (idx *Indexer) Stats(ctx context.Context, sessionID string) (*models.DocumentStats, error) {
	records, err := idx.store.List(ctx, vector.SessionFilter(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list session chunks: %w", err)
	}
	byDoc := make(map[string]*models.DocumentSummary)
	for _, r := range records {
		id := r.Metadata[vector.MetaDocumentID]
		s, ok := byDoc[id]
		if !ok {
			s = &models.DocumentSummary{
				DocumentID: id,
				Title:      r.Metadata[vector.MetaTitle],
				DocType:    r.Metadata[vector.MetaDocType],
			}
			byDoc[id] = s
		}
		s.Chunks++
	}
	stats := &models.DocumentStats{SessionID: sessionID, TotalChunks: len(records), Documents: []models.DocumentSummary{}}
	for _, s := range byDoc {
		stats.Documents = append(stats.Documents, *s)
	}
	sort.Slice(stats.Documents, func(i, j int) bool { return stats.Documents[i].Title < stats.Documents[j].Title })
	return stats, nil
}

// DeleteDocument removes a document and its chunks from a session.
func (idx *Indexer) DeleteDocument(ctx context.Context, sessionID, documentID string) (int, error) {
	n, err := idx.store.Delete(ctx, vector.DocumentFilter(sessionID, documentID))
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, sessionID, documentID); err != nil {
		if !errors.Is(err, storage.ErrDocumentNotFound) || n == 0 {
			return n, err
		}
	}
	idx.logger.Debug("indexer document deleted", zap.String("session_id", sessionID), zap.String("document_id", documentID), zap.Int("chunks", n))
	return n, nil
}

// DeleteSession removes every document and chunk of a session.
func (idx *Indexer) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	n, err := idx.store.Delete(ctx, vector.SessionFilter(sessionID))
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := idx.storage.DeleteSessionDocuments(ctx, sessionID); err != nil {
		return n, fmt.Errorf("failed to delete documents: %w", err)
	}
	idx.logger.Debug("indexer session documents deleted", zap.String("session_id", sessionID), zap.Int("chunks", n))
	return n, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
