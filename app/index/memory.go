package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// MemoryIndex is the in-process implementation. Collections are created on
// first upsert and removed with their last document.
type MemoryIndex struct {
	mu    sync.RWMutex
	model string
	users map[string]*memCollection
}

type memCollection struct {
	dim  int
	docs map[string][]Entry
}

var _ Interface = &MemoryIndex{}

func NewMemoryIndex(model string) *MemoryIndex {
	return &MemoryIndex{
		model: model,
		users: make(map[string]*memCollection),
	}
}

func (m *MemoryIndex) Model() string {
	return m.model
}

func (m *MemoryIndex) Upsert(ctx context.Context, userID, documentID string, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" || documentID == "" {
		return errors.New("user and document ids are required")
	}
	if len(entries) == 0 {
		return m.Delete(ctx, userID, documentID)
	}

	dim := len(entries[0].Vector)
	for _, e := range entries {
		if e.UserID != userID || e.DocumentID != documentID {
			return fmt.Errorf("entry owned by %s/%s upserted into %s/%s: %w",
				e.UserID, e.DocumentID, userID, documentID, ErrConsistency)
		}
		if dim == 0 || len(e.Vector) != dim {
			return fmt.Errorf("vector dimension %d, expected %d: %w", len(e.Vector), dim, ErrModelMismatch)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.users[userID]
	if col == nil {
		col = &memCollection{dim: dim, docs: make(map[string][]Entry)}
		m.users[userID] = col
	}
	if col.dim != dim {
		return fmt.Errorf("collection built with dimension %d, got %d: %w", col.dim, dim, ErrModelMismatch)
	}

	replacement := make([]Entry, len(entries))
	copy(replacement, entries)
	// Single map write under the lock: readers see all-old or all-new.
	col.docs[documentID] = replacement
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, userID string, vector []float32, k int, documentID string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	col := m.users[userID]
	if col == nil {
		return nil, nil
	}
	if len(vector) != col.dim {
		return nil, fmt.Errorf("query dimension %d against collection dimension %d: %w",
			len(vector), col.dim, ErrModelMismatch)
	}

	var results []Result
	for docID, entries := range col.docs {
		if documentID != "" && docID != documentID {
			continue
		}
		for _, e := range entries {
			if e.UserID != userID {
				return nil, fmt.Errorf("chunk of user %s found in collection of %s: %w",
					e.UserID, userID, ErrConsistency)
			}
			results = append(results, Result{Entry: e, Score: cosine(vector, e.Vector)})
		}
	}

	rankResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, userID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.users[userID]
	if col == nil {
		return nil
	}
	delete(col.docs, documentID)
	if len(col.docs) == 0 {
		delete(m.users, userID)
	}
	return nil
}

func (m *MemoryIndex) Count(ctx context.Context, userID, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	col := m.users[userID]
	if col == nil {
		return 0, nil
	}
	if documentID != "" {
		return len(col.docs[documentID]), nil
	}
	total := 0
	for _, entries := range col.docs {
		total += len(entries)
	}
	return total, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
