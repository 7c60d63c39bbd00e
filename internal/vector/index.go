// Package vector provides the session-scoped document chunk store and similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector does not match the store dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Where is an exact-match metadata filter. All pairs must match.
type Where map[string]string

// Matches reports whether metadata satisfies every pair in w.
func (w Where) Matches(metadata map[string]string) bool {
	for k, v := range w {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// Record is one stored chunk: text, embedding and string metadata.
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Hit is a query result. Distance is cosine distance (1 - cosine similarity).
type Hit struct {
	Record
	Distance float64
}

// Store persists chunk records and answers filtered similarity queries.
// Every operation used by the pipeline is scoped with a session_id filter.
type Store interface {
	// Upsert inserts records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error
	// Get returns the records with the given IDs; unknown IDs are omitted.
	Get(ctx context.Context, ids []string) ([]Record, error)
	// Exists reports which of ids are already stored.
	Exists(ctx context.Context, ids []string) (map[string]bool, error)
	// List returns every record matching where.
	List(ctx context.Context, where Where) ([]Record, error)
	// Query returns up to k records matching where, nearest first.
	Query(ctx context.Context, vector []float32, k int, where Where) ([]Hit, error)
	// Delete removes records matching where and returns how many were removed.
	Delete(ctx context.Context, where Where) (int, error)
	// DeleteIDs removes records by ID.
	DeleteIDs(ctx context.Context, ids []string) error
	// Count returns the total number of records.
	Count() int
	Close() error
}

func existsFrom(records []Record) map[string]bool {
	found := make(map[string]bool, len(records))
	for _, r := range records {
		found[r.ID] = true
	}
	return found
}
