package vector

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

var errPrecomputedOnly = errors.New("chromem store accepts precomputed embeddings only")

// ChromemStore is a Store backed by a chromem-go collection, persisted to disk when a path is set.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
	logger     *zap.Logger
}

// ChromemOption configures a ChromemStore.
type ChromemOption func(*ChromemStore)

// WithLogger sets the logger for the store.
func WithLogger(l *zap.Logger) ChromemOption {
	return func(s *ChromemStore) {
		s.logger = l
	}
}

// NewChromemStore opens (or creates) the named collection. An empty path keeps the collection in memory.
func NewChromemStore(path, collection string, compress bool, dimensions int, opts ...ChromemOption) (*ChromemStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	s := &ChromemStore{dimensions: dimensions, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if path == "" {
		s.db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vector dir: %w", err)
		}
		db, err := chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector db: %w", err)
		}
		s.db = db
	}

	// The embedding func must be non-nil, otherwise chromem falls back to its OpenAI default.
	col, err := s.db.GetOrCreateCollection(collection, nil, func(context.Context, string) ([]float32, error) {
		return nil, errPrecomputedOnly
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collection, err)
	}
	s.collection = col
	s.logger.Debug("vector store opened",
		zap.String("path", path),
		zap.String("collection", collection),
		zap.Int("count", col.Count()))
	return s, nil
}

// Upsert adds records; chromem overwrites documents with an existing ID.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if len(r.Embedding) != s.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(r.Embedding), s.dimensions)
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to upsert %d records: %w", len(records), err)
	}
	return nil
}

// Get returns the records for ids that exist.
func (s *ChromemStore) Get(ctx context.Context, ids []string) ([]Record, error) {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.collection.GetByID(ctx, id)
		if err != nil {
			// chromem reports a missing id as an error.
			continue
		}
		out = append(out, Record{ID: doc.ID, Content: doc.Content, Embedding: doc.Embedding, Metadata: doc.Metadata})
	}
	return out, nil
}

// Exists reports which of ids are stored.
func (s *ChromemStore) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	records, err := s.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	return existsFrom(records), nil
}

// List returns every record matching where. chromem has no scan API, so this runs a query
// with a probe vector over the whole collection.
func (s *ChromemStore) List(ctx context.Context, where Where) ([]Record, error) {
	n := s.collection.Count()
	if n == 0 {
		return nil, nil
	}
	probe := make([]float32, s.dimensions)
	probe[0] = 1
	results, err := s.collection.QueryEmbedding(ctx, probe, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	out := make([]Record, len(results))
	for i, r := range results {
		out[i] = Record{ID: r.ID, Content: r.Content, Embedding: r.Embedding, Metadata: r.Metadata}
	}
	return out, nil
}

// Query returns up to k records matching where, nearest first.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, where Where) ([]Hit, error) {
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(vector), s.dimensions)
	}
	// chromem requires nResults <= document count.
	n := s.collection.Count()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}
	results, err := s.collection.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			Record:   Record{ID: r.ID, Content: r.Content, Embedding: r.Embedding, Metadata: r.Metadata},
			Distance: 1 - float64(r.Similarity),
		}
	}
	return hits, nil
}

// Delete removes all records matching where and returns how many were removed.
func (s *ChromemStore) Delete(ctx context.Context, where Where) (int, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("delete requires a filter")
	}
	matched, err := s.List(ctx, where)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	s.logger.Debug("vector records deleted", zap.Any("where", map[string]string(where)), zap.Int("count", len(matched)))
	return len(matched), nil
}

// DeleteIDs removes records by ID.
func (s *ChromemStore) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete %d records: %w", len(ids), err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Close is a no-op; chromem persists each write as it happens.
func (s *ChromemStore) Close() error {
	return nil
}
