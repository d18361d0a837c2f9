package rerank

import (
	"context"
	"fmt"
	"sort"

	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/pkg/utils"
)

// DefaultMaxText is the truncation length for the scoring text sent to the
// oracle. Truncation bounds oracle cost and applies only to the scoring call,
// never to the document's stored or displayed text.
const DefaultMaxText = 512

// DocumentTexts resolves document ids to scoring text (abstract, falling back
// to body then title).
type DocumentTexts interface {
	ScoringText(ctx context.Context, id string) (string, error)
}

// Reranker re-scores a fused candidate set with one pairwise oracle call per
// candidate and re-sorts by that score. When enabled, the reranked order
// replaces the fused order entirely.
type Reranker struct {
	scorer  Scorer
	texts   DocumentTexts
	maxText int
}

// NewReranker creates a reranker. maxText <= 0 uses DefaultMaxText.
func NewReranker(scorer Scorer, texts DocumentTexts, maxText int) *Reranker {
	if maxText <= 0 {
		maxText = DefaultMaxText
	}
	return &Reranker{scorer: scorer, texts: texts, maxText: maxText}
}

// Rerank scores every candidate against query and returns a new slice sorted
// descending by rerank score. The sort is stable: ties keep the incoming
// (fused) relative order, which keeps output reproducible given a
// deterministic oracle. Any oracle failure aborts the whole pass so the
// caller can fall back to the fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []*models.FusedResult) ([]*models.FusedResult, error) {
	if len(candidates) == 0 {
		return []*models.FusedResult{}, nil
	}

	out := make([]*models.FusedResult, len(candidates))
	for i, c := range candidates {
		text, err := r.texts.ScoringText(ctx, c.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("resolve scoring text for %s: %w", c.DocumentID, err)
		}
		score, err := r.scorer.Score(ctx, query, utils.Truncate(text, r.maxText))
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", c.DocumentID, err)
		}
		scored := *c
		scored.RerankScore = score
		scored.Method = models.MethodReranked
		out[i] = &scored
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	return out, nil
}
