// Package index stores chunk vectors per user and serves k-nearest-neighbour
// search over them. Every operation is namespaced by user: one user's
// collection is never visible to another.
package index

import (
	"context"
	"errors"
	"sort"
)

// Entry is one embedded chunk as stored in a user's collection.
type Entry struct {
	UserID     string
	DocumentID string
	ChunkIndex int
	Text       string
	Start      int
	End        int
	Vector     []float32
}

// Result pairs an entry with its similarity to the query vector.
type Result struct {
	Entry Entry
	Score float64
}

var (
	// ErrConsistency signals a broken isolation or atomicity invariant inside
	// the index. It is fatal and must never be swallowed.
	ErrConsistency = errors.New("vector index consistency violation")

	// ErrModelMismatch signals vectors from a different embedding model or
	// dimension than the one the collection was built with.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

type Interface interface {
	// Upsert atomically replaces the document's chunks: a concurrent Search
	// sees either the previous set or the new one, never a mix.
	Upsert(ctx context.Context, userID, documentID string, entries []Entry) error
	// Search returns up to k chunks from the user's collection ranked by
	// descending cosine similarity, ties broken by lower chunk index. A
	// non-empty documentID narrows the search to that document.
	Search(ctx context.Context, userID string, vector []float32, k int, documentID string) ([]Result, error)
	// Delete removes all chunks of one document, leaving other documents and
	// users untouched.
	Delete(ctx context.Context, userID, documentID string) error
	// Count reports stored chunks, for the whole user when documentID is empty.
	Count(ctx context.Context, userID, documentID string) (int, error)
	// Model reports the embedding model identifier the index was built for, so
	// callers can reject vectors from a differently configured embedder.
	Model() string
}

// rankResults orders by descending score with a deterministic tie-break on
// document id and chunk index.
func rankResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Entry.DocumentID != results[j].Entry.DocumentID {
			return results[i].Entry.DocumentID < results[j].Entry.DocumentID
		}
		return results[i].Entry.ChunkIndex < results[j].Entry.ChunkIndex
	})
}
