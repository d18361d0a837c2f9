// Package vector provides the dense embedding index and similarity search.
package vector

import "context"

// Index defines vector storage and nearest-neighbor search. Upsert replaces
// any existing vector stored under the same id, keeping the index consistent
// with the insert-or-replace contract of document ingestion.
type Index interface {
	Upsert(ctx context.Context, id string, vec []float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// Result is a single nearest-neighbor hit. Score is cosine similarity
// clamped to [0,1] for normalized vectors.
type Result struct {
	ID    string
	Score float64
}
