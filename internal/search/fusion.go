// Package search provides hybrid retrieval: rank fusion and the orchestrator
// that fans queries out to the lexical and semantic indexes.
package search

import (
	"sort"

	"github.com/clinbrief/clinbrief/internal/models"
)

// DefaultRRFConstant is the reciprocal rank fusion damping constant. k=60 is
// the standard value (Cormack et al. 2009): rank differences near the top of
// a list matter proportionally more than differences far down it.
const DefaultRRFConstant = 60

// FuseRRF merges the lexical and semantic ranked lists for the same logical
// query using reciprocal rank fusion. A document at 1-indexed position r in a
// list contributes 1/(k+r); absence from a list contributes 0 and is never a
// further penalty. No document present in either input is dropped; callers
// apply their own top-k cutoff afterwards.
//
// The result is sorted by fused score descending with ties broken by document
// id ascending, so the order is deterministic regardless of input ordering
// between the two lists. Per-source ranks and raw scores are carried on each
// result (rank 0 = absent from that source) for explainability.
func FuseRRF(lexical, semantic []*models.ScoredResult, k int) []*models.FusedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if len(lexical) == 0 && len(semantic) == 0 {
		return []*models.FusedResult{}
	}

	fused := make(map[string]*models.FusedResult, len(lexical)+len(semantic))
	get := func(id string) *models.FusedResult {
		if f, ok := fused[id]; ok {
			return f
		}
		f := &models.FusedResult{DocumentID: id, Method: models.MethodFused}
		fused[id] = f
		return f
	}

	for i, r := range lexical {
		f := get(r.DocumentID)
		f.LexicalRank = i + 1
		f.LexicalScore = r.Score
		f.FusedScore += 1.0 / float64(k+i+1)
	}
	for i, r := range semantic {
		f := get(r.DocumentID)
		f.SemanticRank = i + 1
		f.SemanticScore = r.Score
		f.FusedScore += 1.0 / float64(k+i+1)
	}

	out := make([]*models.FusedResult, 0, len(fused))
	for _, f := range fused {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}
