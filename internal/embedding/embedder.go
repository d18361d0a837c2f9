// Package embedding provides text embedding via an external embedding oracle.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations return
// unit-normalized vectors so cosine similarity reduces to the inner product.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
