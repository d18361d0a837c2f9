// Package indexer provides document ingestion into storage, lexical, and vector indices.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/embedding"
	"github.com/clinbrief/clinbrief/internal/lexical"
	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/storage"
	"github.com/clinbrief/clinbrief/internal/vector"
)

// DefaultQuality is assigned to documents ingested without a quality score.
const DefaultQuality = 0.5

// Indexer ingests documents into storage, the lexical index, and the vector index.
type Indexer struct {
	storage  storage.Storage
	embedder embedding.Embedder
	vectors  vector.Index
	lexical  lexical.Index
	logger   *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (document indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectors vector.Index,
	lex lexical.Index,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:  store,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lex,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexDocument ingests one document: validate, default missing fields, embed,
// then write to storage and both indices. The embedding is generated before any
// write so an unavailable embedding oracle leaves no partial state behind.
// Re-ingesting an existing ID replaces the document everywhere.
func (idx *Indexer) IndexDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("document title is required: %w", models.ErrInvalidQuery)
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}

	doc := &models.Document{
		ID:       input.ID,
		Title:    strings.TrimSpace(input.Title),
		Abstract: strings.TrimSpace(input.Abstract),
		Body:     strings.TrimSpace(input.Body),
		Authors:  input.Authors,
		Category: input.Category,
		Quality:  DefaultQuality,
	}
	if doc.Body == "" {
		doc.Body = doc.Abstract
	}
	if input.Quality != nil {
		doc.Quality = *input.Quality
	}

	emb, err := idx.embedder.Embed(ctx, doc.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}

	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := idx.lexical.Index(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to index document: %w", err)
	}
	if err := idx.vectors.Upsert(ctx, doc.ID, emb); err != nil {
		return nil, fmt.Errorf("failed to index vector: %w", err)
	}

	if idx.logger != nil {
		idx.logger.Debug("document indexed",
			zap.String("doc_id", doc.ID),
			zap.String("category", doc.Category))
	}
	return doc, nil
}

// IndexFile reads a JSON file containing a single document object or an array
// of documents and ingests each. Returns the number of documents indexed.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		return 0, fmt.Errorf("unsupported file type: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	inputs, err := decodeInputs(data)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	n := 0
	for _, input := range inputs {
		if _, err := idx.IndexDocument(ctx, input); err != nil {
			return n, err
		}
		n++
	}
	if idx.logger != nil {
		idx.logger.Debug("file ingested", zap.String("path", path), zap.Int("documents", n))
	}
	return n, nil
}

// decodeInputs accepts either a single JSON object or a JSON array of objects.
func decodeInputs(data []byte) ([]*models.DocumentInput, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var inputs []*models.DocumentInput
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, err
		}
		return inputs, nil
	}
	var input models.DocumentInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return []*models.DocumentInput{&input}, nil
}

// IndexDirectory walks dir recursively and ingests every .json file.
// Returns the number of documents indexed and the first error encountered.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	total := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".json" {
			return nil
		}
		n, indexErr := idx.IndexFile(ctx, path)
		total += n
		return indexErr
	})
	return total, err
}

// DeleteDocument removes a document from both indices and storage.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if err := idx.lexical.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from lexical index: %w", err)
	}
	if err := idx.vectors.Remove(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("document deleted", zap.String("doc_id", id))
	}
	return nil
}

// Stats reports store and index sizes.
type Stats struct {
	Documents int64  `json:"documents"`
	Vectors   int    `json:"vectors"`
	Lexical   uint64 `json:"lexical"`
}

// Stats returns the current document count and index sizes.
func (idx *Indexer) Stats(ctx context.Context) (*Stats, error) {
	docs, err := idx.storage.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	lexCount, err := idx.lexical.DocCount()
	if err != nil {
		return nil, fmt.Errorf("lexical doc count: %w", err)
	}
	return &Stats{
		Documents: docs,
		Vectors:   idx.vectors.Size(),
		Lexical:   lexCount,
	}, nil
}
