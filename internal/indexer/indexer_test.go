package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/clinbrief/clinbrief/internal/embedding"
	"github.com/clinbrief/clinbrief/internal/lexical"
	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/storage"
	"github.com/clinbrief/clinbrief/internal/vector"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, models.ErrOracleUnavailable
}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, models.ErrOracleUnavailable
}

func (failingEmbedder) Dimensions() int { return 8 }
func (failingEmbedder) Close() error    { return nil }

type testDeps struct {
	store   *storage.SQLiteStorage
	vectors *vector.MemoryIndex
	lex     *lexical.BleveIndex
}

func newTestIndexer(t *testing.T, embedder embedding.Embedder) (*Indexer, *testDeps) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	vectors, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		t.Fatalf("vector index: %v", err)
	}
	lex, err := lexical.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("lexical index: %v", err)
	}
	t.Cleanup(func() {
		_ = lex.Close()
		_ = store.Close()
	})
	return NewIndexer(store, embedder, vectors, lex), &testDeps{store: store, vectors: vectors, lex: lex}
}

func TestIndexDocument(t *testing.T) {
	idx, deps := newTestIndexer(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()

	doc, err := idx.IndexDocument(ctx, &models.DocumentInput{
		ID:       "d1",
		Title:    "Metformin trial",
		Abstract: "Glycemic outcomes in elderly adults.",
		Category: "rct",
	})
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if doc.Quality != DefaultQuality {
		t.Errorf("quality should default to %v, got %v", DefaultQuality, doc.Quality)
	}
	if doc.Body != doc.Abstract {
		t.Errorf("body should default to abstract, got %q", doc.Body)
	}

	stored, err := deps.store.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatalf("document not stored: %v", err)
	}
	if stored.Title != "Metformin trial" {
		t.Errorf("unexpected stored title %q", stored.Title)
	}
	if deps.vectors.Size() != 1 {
		t.Errorf("vector index should hold 1 vector, got %d", deps.vectors.Size())
	}
	count, _ := deps.lex.DocCount()
	if count != 1 {
		t.Errorf("lexical index should hold 1 document, got %d", count)
	}
}

func TestIndexDocumentGeneratesID(t *testing.T) {
	idx, _ := newTestIndexer(t, embedding.NewMockEmbedder(8))

	doc, err := idx.IndexDocument(context.Background(), &models.DocumentInput{Title: "t", Abstract: "a"})
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if doc.ID == "" {
		t.Error("missing id should be generated")
	}
}

func TestIndexDocumentRequiresTitle(t *testing.T) {
	idx, _ := newTestIndexer(t, embedding.NewMockEmbedder(8))

	_, err := idx.IndexDocument(context.Background(), &models.DocumentInput{Abstract: "a"})
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestIndexDocumentEmbeddingFailureLeavesNoState(t *testing.T) {
	idx, deps := newTestIndexer(t, failingEmbedder{})
	ctx := context.Background()

	_, err := idx.IndexDocument(ctx, &models.DocumentInput{ID: "d1", Title: "t", Abstract: "a"})
	if !errors.Is(err, models.ErrOracleUnavailable) {
		t.Fatalf("expected oracle unavailable, got %v", err)
	}
	if _, err := deps.store.GetDocument(ctx, "d1"); !errors.Is(err, models.ErrNotFound) {
		t.Error("failed ingestion must not leave the document in storage")
	}
	if deps.vectors.Size() != 0 {
		t.Error("failed ingestion must not leave a vector behind")
	}
	count, _ := deps.lex.DocCount()
	if count != 0 {
		t.Error("failed ingestion must not leave a lexical entry behind")
	}
}

func TestIndexDocumentReplace(t *testing.T) {
	idx, deps := newTestIndexer(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()

	if _, err := idx.IndexDocument(ctx, &models.DocumentInput{ID: "d1", Title: "v1", Abstract: "a"}); err != nil {
		t.Fatalf("first index failed: %v", err)
	}
	if _, err := idx.IndexDocument(ctx, &models.DocumentInput{ID: "d1", Title: "v2", Abstract: "b"}); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	stored, _ := deps.store.GetDocument(ctx, "d1")
	if stored.Title != "v2" {
		t.Errorf("expected replacement, got %q", stored.Title)
	}
	if deps.vectors.Size() != 1 {
		t.Errorf("vector index should still hold 1 vector, got %d", deps.vectors.Size())
	}
	count, _ := deps.lex.DocCount()
	if count != 1 {
		t.Errorf("lexical index should still hold 1 document, got %d", count)
	}
}

func TestDeleteDocument(t *testing.T) {
	idx, deps := newTestIndexer(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()

	if _, err := idx.IndexDocument(ctx, &models.DocumentInput{ID: "d1", Title: "t", Abstract: "a"}); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if err := idx.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := deps.store.GetDocument(ctx, "d1"); !errors.Is(err, models.ErrNotFound) {
		t.Error("document should be gone from storage")
	}
	if deps.vectors.Size() != 0 {
		t.Error("vector should be gone")
	}
}

func TestIndexFileSingleAndArray(t *testing.T) {
	idx, deps := newTestIndexer(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()
	dir := t.TempDir()

	single := filepath.Join(dir, "one.json")
	writeJSON(t, single, &models.DocumentInput{ID: "s1", Title: "single", Abstract: "a"})
	n, err := idx.IndexFile(ctx, single)
	if err != nil {
		t.Fatalf("single file ingest failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}

	array := filepath.Join(dir, "many.json")
	writeJSON(t, array, []*models.DocumentInput{
		{ID: "m1", Title: "first", Abstract: "a"},
		{ID: "m2", Title: "second", Abstract: "b"},
	})
	n, err = idx.IndexFile(ctx, array)
	if err != nil {
		t.Fatalf("array file ingest failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}

	count, _ := deps.store.CountDocuments(ctx)
	if count != 3 {
		t.Errorf("expected 3 stored documents, got %d", count)
	}
}

func TestIndexFileRejectsNonJSON(t *testing.T) {
	idx, _ := newTestIndexer(t, embedding.NewMockEmbedder(8))
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("plain"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.IndexFile(context.Background(), path); err == nil {
		t.Error("non-JSON files should be rejected")
	}
}

func TestIndexDirectory(t *testing.T) {
	idx, _ := newTestIndexer(t, embedding.NewMockEmbedder(8))
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "a.json"), &models.DocumentInput{ID: "a", Title: "a", Abstract: "x"})
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeJSON(t, filepath.Join(sub, "b.json"), &models.DocumentInput{ID: "b", Title: "b", Abstract: "y"})
	if err := os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := idx.IndexDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("directory ingest failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestStats(t *testing.T) {
	idx, _ := newTestIndexer(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := idx.IndexDocument(ctx, &models.DocumentInput{ID: id, Title: id, Abstract: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.DeleteDocument(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Documents != 2 || stats.Vectors != 2 || stats.Lexical != 2 {
		t.Errorf("expected 2/2/2, got %+v", stats)
	}
}
