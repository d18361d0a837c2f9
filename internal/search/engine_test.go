package search

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/rerank"
	"github.com/clinbrief/clinbrief/internal/vector"
)

type fakeLexical struct {
	byQuery map[string][]string
	err     error
}

func (f *fakeLexical) Index(ctx context.Context, doc *models.Document) error { return nil }

func (f *fakeLexical) Search(ctx context.Context, query string, topK int, fields []string) ([]*models.ScoredResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := f.byQuery[query]
	if len(ids) > topK {
		ids = ids[:topK]
	}
	out := make([]*models.ScoredResult, len(ids))
	for i, id := range ids {
		out[i] = &models.ScoredResult{DocumentID: id, Score: float64(len(ids) - i), Method: models.MethodLexical, Rank: i + 1}
	}
	return out, nil
}

func (f *fakeLexical) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeLexical) DocCount() (uint64, error)                   { return 0, nil }
func (f *fakeLexical) Close() error                                { return nil }

type fakeVector struct {
	hits []string
	err  error
}

func (f *fakeVector) Upsert(ctx context.Context, id string, vec []float32) error { return nil }

func (f *fakeVector) Search(ctx context.Context, query []float32, k int) ([]*vector.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	hits := f.hits
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]*vector.Result, len(hits))
	for i, id := range hits {
		out[i] = &vector.Result{ID: id, Score: 1.0 - float64(i)*0.1}
	}
	return out, nil
}

func (f *fakeVector) Remove(ctx context.Context, ids []string) error { return nil }
func (f *fakeVector) Save(path string) error                         { return nil }
func (f *fakeVector) Load(path string) error                         { return nil }
func (f *fakeVector) Size() int                                      { return len(f.hits) }
func (f *fakeVector) Dimensions() int                                { return 4 }
func (f *fakeVector) Close() error                                   { return nil }

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 4 }
func (f *fakeEmbedder) Close() error    { return nil }

type fakeScorer struct {
	scores map[string]float64
	err    error
}

func (f *fakeScorer) Score(ctx context.Context, query, text string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.scores[text], nil
}

type fakeTexts struct{}

func (fakeTexts) ScoringText(ctx context.Context, id string) (string, error) { return id, nil }

func newTestEngine(lex *fakeLexical, vec *fakeVector, emb *fakeEmbedder, reranker *rerank.Reranker) *Engine {
	return NewEngine(lex, vec, emb, reranker, nil, Options{}, zap.NewNop())
}

func retrievedIDs(result *models.RetrievalResult) []string {
	ids := make([]string, len(result.Results))
	for i, r := range result.Results {
		ids[i] = r.DocumentID
	}
	return ids
}

func TestRetrieveHappyPath(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{"q": {"A", "B", "C"}}}
	vec := &fakeVector{hits: []string{"B", "A", "D"}}
	engine := newTestEngine(lex, vec, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q"},
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"A", "B", "D", "C"}
	if got := retrievedIDs(result); !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
	if result.Degraded {
		t.Error("result should not be degraded")
	}
	if !result.Signals.Lexical || !result.Signals.Semantic {
		t.Errorf("both signals should be present: %+v", result.Signals)
	}
	if result.Signals.Reranked {
		t.Error("reranked signal should be absent without a reranker")
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{
		"q1": {"A", "B", "C"},
		"q2": {"C", "D"},
	}}
	vec := &fakeVector{hits: []string{"E", "A"}}
	engine := newTestEngine(lex, vec, &fakeEmbedder{}, nil)

	req := func() *models.RetrievalRequest {
		return &models.RetrievalRequest{Variants: []string{"q1", "q2"}, TopK: 10}
	}
	first, err := engine.Retrieve(context.Background(), req())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := engine.Retrieve(context.Background(), req())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(retrievedIDs(first), retrievedIDs(again)) {
			t.Fatalf("order not deterministic: %v vs %v", retrievedIDs(first), retrievedIDs(again))
		}
	}
}

func TestRetrieveNoDuplicates(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{
		"q1": {"A", "B"},
		"q2": {"B", "A"},
	}}
	vec := &fakeVector{hits: []string{"A", "B"}}
	engine := newTestEngine(lex, vec, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q1", "q2"},
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]bool{}
	for _, id := range retrievedIDs(result) {
		if seen[id] {
			t.Errorf("duplicate document %s in results", id)
		}
		seen[id] = true
	}
}

func TestRetrieveTopKCutoff(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{"q": {"A", "B", "C", "D", "E"}}}
	engine := newTestEngine(lex, &fakeVector{}, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q"},
		TopK:     2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(result.Results))
	}
}

func TestRetrieveTopKZero(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{"q": {"A"}}}
	engine := newTestEngine(lex, &fakeVector{hits: []string{"A"}}, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q"},
		TopK:     0,
	})
	if err != nil {
		t.Fatalf("topK zero should not error: %v", err)
	}
	if len(result.Results) != 0 {
		t.Errorf("expected empty results, got %d", len(result.Results))
	}
	if result.Degraded {
		t.Error("empty request should not be degraded")
	}
}

func TestRetrieveValidation(t *testing.T) {
	engine := newTestEngine(&fakeLexical{}, &fakeVector{}, &fakeEmbedder{}, nil)

	_, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"  ", ""},
		TopK:     5,
	})
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("blank variants should fail validation, got %v", err)
	}

	_, err = engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q"},
		TopK:     -1,
	})
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("negative topK should fail validation, got %v", err)
	}
}

func TestRetrieveLexicalFailureDegrades(t *testing.T) {
	lex := &fakeLexical{err: errors.New("index corrupt")}
	vec := &fakeVector{hits: []string{"A", "B"}}
	engine := newTestEngine(lex, vec, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q"},
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("one failed signal should not fail the request: %v", err)
	}
	if !result.Degraded {
		t.Error("result should be degraded")
	}
	if result.Signals.Lexical {
		t.Error("lexical signal should be absent")
	}
	if !result.Signals.Semantic {
		t.Error("semantic signal should be present")
	}
	want := []string{"A", "B"}
	if got := retrievedIDs(result); !reflect.DeepEqual(got, want) {
		t.Errorf("expected semantic-only order %v, got %v", want, got)
	}
}

func TestRetrieveEmbedderFailureDegrades(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{"q": {"A"}}}
	engine := newTestEngine(lex, &fakeVector{hits: []string{"B"}}, &fakeEmbedder{err: models.ErrOracleUnavailable}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q"},
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("embedding failure should degrade, not fail: %v", err)
	}
	if !result.Degraded || result.Signals.Semantic {
		t.Errorf("semantic signal should be lost: %+v", result.Signals)
	}
	if got := retrievedIDs(result); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("expected lexical-only results, got %v", got)
	}
}

func TestRetrieveRankWinsAcrossVariants(t *testing.T) {
	// B is rank 2 under q1 but rank 1 under q2; the merged lexical list
	// must carry B at rank 1.
	lex := &fakeLexical{byQuery: map[string][]string{
		"q1": {"A", "B"},
		"q2": {"B"},
	}}
	engine := newTestEngine(lex, &fakeVector{}, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q1", "q2"},
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byID := map[string]*models.FusedResult{}
	for _, r := range result.Results {
		byID[r.DocumentID] = r
	}
	if byID["B"].LexicalRank != 1 {
		t.Errorf("B should keep its best rank 1, got %d", byID["B"].LexicalRank)
	}
	if byID["A"].LexicalRank != 2 {
		t.Errorf("A should be re-ranked to 2 after the merge, got %d", byID["A"].LexicalRank)
	}
}

func TestRetrieveWithReranking(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{"q": {"A", "B"}}}
	vec := &fakeVector{hits: []string{"A", "B"}}
	// Scoring text is the document id in these fakes; invert the fused order.
	scorer := &fakeScorer{scores: map[string]float64{"A": 0.1, "B": 0.9}}
	reranker := rerank.NewReranker(scorer, fakeTexts{}, 512)
	engine := newTestEngine(lex, vec, &fakeEmbedder{}, reranker)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants:     []string{"q"},
		TopK:         10,
		UseReranking: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Signals.Reranked {
		t.Error("reranked signal should be set")
	}
	want := []string{"B", "A"}
	if got := retrievedIDs(result); !reflect.DeepEqual(got, want) {
		t.Errorf("expected reranked order %v, got %v", want, got)
	}
	if result.Results[0].Method != models.MethodReranked {
		t.Errorf("expected reranked method, got %s", result.Results[0].Method)
	}
}

func TestRetrieveRerankFailureFallsBack(t *testing.T) {
	lex := &fakeLexical{byQuery: map[string][]string{"q": {"A", "B"}}}
	scorer := &fakeScorer{err: models.ErrOracleUnavailable}
	reranker := rerank.NewReranker(scorer, fakeTexts{}, 512)
	engine := newTestEngine(lex, &fakeVector{}, &fakeEmbedder{}, reranker)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants:     []string{"q"},
		TopK:         10,
		UseReranking: true,
	})
	if err != nil {
		t.Fatalf("rerank failure should fall back, not fail: %v", err)
	}
	if !result.Degraded {
		t.Error("result should be degraded after rerank failure")
	}
	if result.Signals.Reranked {
		t.Error("reranked signal should be absent")
	}
	want := []string{"A", "B"}
	if got := retrievedIDs(result); !reflect.DeepEqual(got, want) {
		t.Errorf("expected fused order %v, got %v", want, got)
	}
}

func TestRetrieveRerankingRequestedWithoutReranker(t *testing.T) {
	// Requesting reranking when the capability is not configured is valid;
	// the fused order stands and nothing is degraded.
	lex := &fakeLexical{byQuery: map[string][]string{"q": {"A"}}}
	engine := newTestEngine(lex, &fakeVector{}, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants:     []string{"q"},
		TopK:         10,
		UseReranking: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Error("missing reranker is configuration, not degradation")
	}
	if result.Signals.Reranked {
		t.Error("reranked signal must be false")
	}
}

func TestRetrieveEmptyIndexes(t *testing.T) {
	engine := newTestEngine(&fakeLexical{}, &fakeVector{}, &fakeEmbedder{}, nil)

	result, err := engine.Retrieve(context.Background(), &models.RetrievalRequest{
		Variants: []string{"q"},
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("empty indexes should return empty results: %v", err)
	}
	if len(result.Results) != 0 {
		t.Errorf("expected no results, got %d", len(result.Results))
	}
	if result.Degraded {
		t.Error("empty indexes are not a degradation")
	}
}
