package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/config"
	"github.com/clinbrief/clinbrief/internal/embedding"
	"github.com/clinbrief/clinbrief/internal/indexer"
	"github.com/clinbrief/clinbrief/internal/lexical"
	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/search"
	"github.com/clinbrief/clinbrief/internal/storage"
	"github.com/clinbrief/clinbrief/internal/vector"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	embedder := embedding.NewMockEmbedder(8)
	vecIdx, _ := vector.NewMemoryIndex(8)
	lexIdx, err := lexical.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	t.Cleanup(func() {
		_ = lexIdx.Close()
		_ = store.Close()
	})

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	engine := search.NewEngine(lexIdx, vecIdx, embedder, nil, store, search.Options{}, zap.NewNop())
	idx := indexer.NewIndexer(store, embedder, vecIdx, lexIdx)
	return NewServer(engine, idx, nil, store, cfg, zap.NewNop())
}

func postRequest(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleIndexAndSearch(t *testing.T) {
	srv := newTestServer(t)

	w := postRequest(t, srv.handleIndexDocument, &models.DocumentInput{
		ID:       "d1",
		Title:    "Metformin in elderly patients",
		Abstract: "Glycemic control outcomes.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("index status: got %d, body: %s", w.Code, w.Body.String())
	}

	w = postRequest(t, srv.handleSearch, map[string]interface{}{
		"query": "metformin elderly",
		"top_k": 5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("search status: got %d, body: %s", w.Code, w.Body.String())
	}
	var result models.RetrievalResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 || result.Results[0].DocumentID != "d1" {
		t.Errorf("expected d1 hit, got %+v", result.Results)
	}
	if result.Results[0].Title == "" {
		t.Error("display fields should be resolved")
	}
}

func TestHandleSearchInvalidQuery(t *testing.T) {
	srv := newTestServer(t)

	w := postRequest(t, srv.handleSearch, map[string]interface{}{"query": "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank query should be 400, got %d", w.Code)
	}

	w = postRequest(t, srv.handleSearch, map[string]interface{}{"query": "q", "top_k": -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative topK should be 400, got %d", w.Code)
	}
}

func TestHandleSearchCapsTopK(t *testing.T) {
	srv := newTestServer(t)
	srv.config.Retrieval.MaxTopK = 3

	w := postRequest(t, srv.handleSearch, map[string]interface{}{"query": "q", "top_k": 999})
	if w.Code != http.StatusOK {
		t.Fatalf("search status: got %d", w.Code)
	}
}

func TestHandleGetDocument(t *testing.T) {
	srv := newTestServer(t)
	postRequest(t, srv.handleIndexDocument, &models.DocumentInput{ID: "d1", Title: "t", Abstract: "a"})

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "d1")
	w := httptest.NewRecorder()
	srv.handleGetDocument(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: got %d", w.Code)
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID != "d1" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestHandleGetDocumentNotFound(t *testing.T) {
	srv := newTestServer(t)
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "missing")
	w := httptest.NewRecorder()
	srv.handleGetDocument(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	srv := newTestServer(t)
	postRequest(t, srv.handleIndexDocument, &models.DocumentInput{ID: "d1", Title: "t", Abstract: "a"})

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", "d1")
	w := httptest.NewRecorder()
	srv.handleDeleteDocument(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", w.Code)
	}

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "d1")
	w = httptest.NewRecorder()
	srv.handleGetDocument(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("document should be gone, got %d", w.Code)
	}
}

func TestHandleListDocuments(t *testing.T) {
	srv := newTestServer(t)
	postRequest(t, srv.handleIndexDocument, &models.DocumentInput{ID: "d1", Title: "a", Abstract: "x"})
	postRequest(t, srv.handleIndexDocument, &models.DocumentInput{ID: "d2", Title: "b", Abstract: "y"})

	r := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	w := httptest.NewRecorder()
	srv.handleListDocuments(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var out struct {
		Documents []*models.Document `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Documents) != 2 {
		t.Errorf("expected 2 documents, got %d", len(out.Documents))
	}
}

func TestHandleResearchWithoutPipeline(t *testing.T) {
	srv := newTestServer(t)
	w := postRequest(t, srv.handleResearch, map[string]interface{}{"topic": "diabetes"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a pipeline, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health status: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)
	postRequest(t, srv.handleIndexDocument, &models.DocumentInput{ID: "d1", Title: "t", Abstract: "a"})

	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["documents"].(float64) != 1 {
		t.Errorf("expected 1 document, got %v", out["documents"])
	}
	if out["vector_index_size"].(float64) != 1 {
		t.Errorf("expected 1 vector, got %v", out["vector_index_size"])
	}
	if _, ok := out["disk_usage"]; !ok {
		t.Error("expected per-store disk usage in status response")
	}
}

func TestClientLimiter(t *testing.T) {
	cl := newClientLimiter(60, 2)
	if !cl.allow("1.2.3.4") || !cl.allow("1.2.3.4") {
		t.Error("burst requests should be allowed")
	}
	if cl.allow("1.2.3.4") {
		t.Error("request beyond burst should be rejected")
	}
	if !cl.allow("5.6.7.8") {
		t.Error("limits are per client")
	}
}
