// Package lexical provides the term-frequency (BM25-style) document index.
package lexical

import (
	"context"

	"github.com/clinbrief/clinbrief/internal/models"
)

// DefaultFields are the fields queried when the caller does not restrict the search.
var DefaultFields = []string{"title", "abstract", "body"}

// Index defines lexical search operations. Index is insert-or-replace by
// document id; Search ranks up to topK documents over the requested fields.
type Index interface {
	Index(ctx context.Context, doc *models.Document) error
	Search(ctx context.Context, query string, topK int, fields []string) ([]*models.ScoredResult, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}
