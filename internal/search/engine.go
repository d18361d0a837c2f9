package search

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/embedding"
	"github.com/clinbrief/clinbrief/internal/lexical"
	"github.com/clinbrief/clinbrief/internal/metrics"
	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/rerank"
	"github.com/clinbrief/clinbrief/internal/vector"
	"github.com/clinbrief/clinbrief/pkg/utils"
)

// DocumentResolver fills display fields on fused results from the document
// store after ranking is complete.
type DocumentResolver interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// Options holds engine tuning knobs.
type Options struct {
	// RRFConstant is the fusion damping constant; <= 0 means DefaultRRFConstant.
	RRFConstant int
	// OverFetchFactor multiplies topK for per-index candidate requests;
	// <= 0 means 2. Over-fetching gives fusion and reranking headroom
	// before the final cutoff.
	OverFetchFactor int
	// SnippetLength bounds the abstract snippet on returned results.
	SnippetLength int
}

// Engine orchestrates hybrid retrieval: parallel lexical and semantic fan-out
// per query variant, rank-wins deduplication, reciprocal rank fusion, and
// optional pairwise reranking. The reranker is an injected capability; nil
// means reranking is not configured, which is a valid setup rather than an
// error path.
type Engine struct {
	lexical  lexical.Index
	vectors  vector.Index
	embedder embedding.Embedder
	reranker *rerank.Reranker
	resolver DocumentResolver
	opts     Options
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine with the given dependencies.
// reranker may be nil to disable pairwise reranking.
func NewEngine(
	lex lexical.Index,
	vec vector.Index,
	embedder embedding.Embedder,
	reranker *rerank.Reranker,
	resolver DocumentResolver,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = DefaultRRFConstant
	}
	if opts.OverFetchFactor <= 0 {
		opts.OverFetchFactor = 2
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = 300
	}
	return &Engine{
		lexical:  lex,
		vectors:  vec,
		embedder: embedder,
		reranker: reranker,
		resolver: resolver,
		opts:     opts,
		logger:   logger,
	}
}

// taskResult is the output of one (variant x index) fan-out task. Failures
// are converted at the task boundary into a nil result list with ok=false;
// they reduce to "this signal contributed nothing" rather than aborting the
// join.
type taskResult struct {
	method  models.Method
	results []*models.ScoredResult
	ok      bool
}

// Retrieve executes the full pipeline for one request and returns a bounded,
// deduplicated, deterministically ordered result. Partial failure of one
// index degrades the response (flagged in Signals) instead of failing it;
// validation failures are returned before any I/O.
func (e *Engine) Retrieve(ctx context.Context, req *models.RetrievalRequest) (*models.RetrievalResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if req.TopK == 0 {
		return &models.RetrievalResult{
			Results:     []*models.FusedResult{},
			QueryTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	fetchK := req.TopK * e.opts.OverFetchFactor
	results := e.fanOut(ctx, req.Variants, fetchK)

	lexMerged, lexOK := mergeRankWins(results, models.MethodLexical)
	semMerged, semOK := mergeRankWins(results, models.MethodSemantic)

	out := &models.RetrievalResult{
		Signals: models.SignalSet{Lexical: lexOK, Semantic: semOK},
	}
	if !lexOK {
		out.Degraded = true
		metrics.RetrievalDegradedTotal.WithLabelValues("lexical").Inc()
	}
	if !semOK {
		out.Degraded = true
		metrics.RetrievalDegradedTotal.WithLabelValues("semantic").Inc()
	}

	fused := FuseRRF(lexMerged, semMerged, e.opts.RRFConstant)

	if req.UseReranking && e.reranker != nil && len(fused) > 0 {
		reranked, err := e.reranker.Rerank(ctx, req.RerankQuery(), fused)
		if err != nil {
			e.logger.Warn("reranking failed, falling back to fused order", zap.Error(err))
			out.Degraded = true
			metrics.RetrievalDegradedTotal.WithLabelValues("rerank").Inc()
		} else {
			fused = reranked
			out.Signals.Reranked = true
		}
	}

	if len(fused) > req.TopK {
		fused = fused[:req.TopK]
	}
	e.resolveDisplayFields(ctx, fused)
	out.Results = fused
	out.QueryTimeMS = time.Since(start).Milliseconds()

	if out.Degraded {
		metrics.RetrievalRequestsTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.RetrievalRequestsTotal.WithLabelValues("ok").Inc()
	}
	return out, nil
}

// fanOut runs one task per (variant x index) concurrently and joins them.
// Each task writes exactly one taskResult to the channel; the join abandons
// outstanding tasks once the context deadline passes and proceeds with
// whatever has completed. No shared state is written during the fan-out:
// accumulation happens only after the join.
func (e *Engine) fanOut(ctx context.Context, variants []string, fetchK int) []taskResult {
	total := len(variants) * 2
	ch := make(chan taskResult, total)

	for _, variant := range variants {
		go func(q string) {
			res, err := e.lexical.Search(ctx, q, fetchK, nil)
			if err != nil {
				e.logger.Warn("lexical search failed", zap.String("variant", q), zap.Error(err))
				ch <- taskResult{method: models.MethodLexical}
				return
			}
			ch <- taskResult{method: models.MethodLexical, results: res, ok: true}
		}(variant)
		go func(q string) {
			emb, err := e.embedder.Embed(ctx, q)
			if err != nil {
				e.logger.Warn("query embedding failed", zap.String("variant", q), zap.Error(err))
				ch <- taskResult{method: models.MethodSemantic}
				return
			}
			hits, err := e.vectors.Search(ctx, emb, fetchK)
			if err != nil {
				e.logger.Warn("vector search failed", zap.String("variant", q), zap.Error(err))
				ch <- taskResult{method: models.MethodSemantic}
				return
			}
			res := make([]*models.ScoredResult, len(hits))
			for i, h := range hits {
				res[i] = &models.ScoredResult{
					DocumentID: h.ID,
					Score:      h.Score,
					Method:     models.MethodSemantic,
					Rank:       i + 1,
				}
			}
			ch <- taskResult{method: models.MethodSemantic, results: res, ok: true}
		}(variant)
	}

	collected := make([]taskResult, 0, total)
	for i := 0; i < total; i++ {
		select {
		case tr := <-ch:
			collected = append(collected, tr)
		case <-ctx.Done():
			// In-flight calls are abandoned; retrieval proceeds with the
			// partial results already collected.
			e.logger.Warn("retrieval deadline exceeded, proceeding with partial results",
				zap.Int("completed", len(collected)), zap.Int("total", total))
			return collected
		}
	}
	return collected
}

// mergeRankWins merges all result lists of one method across variants. A
// document seen under multiple variants keeps its best (lowest) rank and the
// score attached to that occurrence. The merged list is re-ranked 1..n in
// order of (best rank asc, score desc, id asc), so the outcome is independent
// of task completion order. The second return value reports whether at least
// one task for the method completed successfully.
func mergeRankWins(results []taskResult, method models.Method) ([]*models.ScoredResult, bool) {
	ok := false
	best := make(map[string]*models.ScoredResult)
	for _, tr := range results {
		if tr.method != method {
			continue
		}
		if !tr.ok {
			continue
		}
		ok = true
		for _, r := range tr.results {
			cur, seen := best[r.DocumentID]
			if !seen || r.Rank < cur.Rank {
				best[r.DocumentID] = r
			}
		}
	}
	merged := make([]*models.ScoredResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Rank != merged[j].Rank {
			return merged[i].Rank < merged[j].Rank
		}
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].DocumentID < merged[j].DocumentID
	})
	for i, r := range merged {
		merged[i] = &models.ScoredResult{
			DocumentID: r.DocumentID,
			Score:      r.Score,
			Method:     r.Method,
			Rank:       i + 1,
		}
	}
	return merged, ok
}

// resolveDisplayFields fills title, snippet, and metadata from the document
// store. Ranking is already final here, so a missing document only leaves its
// display fields empty.
func (e *Engine) resolveDisplayFields(ctx context.Context, results []*models.FusedResult) {
	if e.resolver == nil {
		return
	}
	for _, r := range results {
		doc, err := e.resolver.GetDocument(ctx, r.DocumentID)
		if err != nil {
			e.logger.Warn("display resolution failed", zap.String("doc_id", r.DocumentID), zap.Error(err))
			continue
		}
		r.Title = doc.Title
		r.Snippet = utils.Snippet(doc.Abstract, e.opts.SnippetLength)
		r.Authors = doc.Authors
		r.Category = doc.Category
		r.Quality = doc.Quality
	}
}
