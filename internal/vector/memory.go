package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store using brute-force cosine search.
// Used in tests and when no persistent vector path is configured.
type MemoryStore struct {
	dimensions int
	records    map[string]Record
	order      []string
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{
		dimensions: dimensions,
		records:    make(map[string]Record),
	}, nil
}

// Upsert stores copies of records, replacing any with the same ID.
func (m *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	for _, r := range records {
		if len(r.Embedding) != m.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(r.Embedding), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, ok := m.records[r.ID]; !ok {
			m.order = append(m.order, r.ID)
		}
		m.records[r.ID] = copyRecord(r)
	}
	return nil
}

// Get returns the stored records for ids, in the order given.
func (m *MemoryStore) Get(ctx context.Context, ids []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

// Exists reports which of ids are stored.
func (m *MemoryStore) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	records, err := m.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	return existsFrom(records), nil
}

// List returns every record matching where in insertion order.
func (m *MemoryStore) List(ctx context.Context, where Where) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, id := range m.order {
		r := m.records[id]
		if where.Matches(r.Metadata) {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

// Query returns the k records matching where with the smallest cosine distance to vector.
func (m *MemoryStore) Query(ctx context.Context, vector []float32, k int, where Where) ([]Hit, error) {
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(vector), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.records) == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(m.records))
	for _, id := range m.order {
		r := m.records[id]
		if !where.Matches(r.Metadata) {
			continue
		}
		hits = append(hits, Hit{Record: copyRecord(r), Distance: CosineDistance(vector, r.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes all records matching where. An empty filter deletes nothing.
func (m *MemoryStore) Delete(ctx context.Context, where Where) (int, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("delete requires a filter")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	kept := m.order[:0]
	for _, id := range m.order {
		if where.Matches(m.records[id].Metadata) {
			delete(m.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}

// DeleteIDs removes records by ID. Unknown IDs are ignored.
func (m *MemoryStore) DeleteIDs(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, id := range m.order {
		if removeSet[id] {
			delete(m.records, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

func copyRecord(r Record) Record {
	out := Record{ID: r.ID, Content: r.Content}
	out.Embedding = make([]float32, len(r.Embedding))
	copy(out.Embedding, r.Embedding)
	out.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	return out
}
