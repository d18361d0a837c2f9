package models

import (
	"fmt"
	"strings"
)

// RetrievalRequest is the single entry point input for hybrid retrieval.
// Variants are one or more query strings issued against both indexes; Topic,
// when non-blank, is preferred as the reranking query.
type RetrievalRequest struct {
	Variants     []string `json:"variants"`
	Topic        string   `json:"topic,omitempty"`
	TopK         int      `json:"top_k"`
	UseReranking bool     `json:"use_reranking"`
}

// Validate checks the request before any I/O is attempted. A negative TopK
// or an empty variant set is a validation error; TopK == 0 is valid and
// yields an empty result. Blank variants are removed in place.
func (r *RetrievalRequest) Validate() error {
	kept := r.Variants[:0]
	for _, v := range r.Variants {
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	r.Variants = kept
	if len(r.Variants) == 0 {
		return fmt.Errorf("%w: at least one non-empty query variant is required", ErrInvalidQuery)
	}
	if r.TopK < 0 {
		return fmt.Errorf("%w: topK must not be negative, got %d", ErrInvalidQuery, r.TopK)
	}
	return nil
}

// RerankQuery returns the query text used for pairwise reranking: the topic
// when non-blank, otherwise the variants joined by spaces.
func (r *RetrievalRequest) RerankQuery() string {
	if strings.TrimSpace(r.Topic) != "" {
		return r.Topic
	}
	return strings.Join(r.Variants, " ")
}

// SignalSet records which retrieval signals contributed to a result, so that
// degraded responses are observable by the caller.
type SignalSet struct {
	Lexical  bool `json:"lexical"`
	Semantic bool `json:"semantic"`
	Reranked bool `json:"reranked"`
}

// RetrievalResult is the ordered output of a retrieval request. Results holds
// at most TopK entries with no duplicate document ids. Degraded is true when
// a signal that was requested could not contribute.
type RetrievalResult struct {
	Results     []*FusedResult `json:"results"`
	Signals     SignalSet      `json:"signals"`
	Degraded    bool           `json:"degraded"`
	QueryTimeMS int64          `json:"query_time_ms"`
}
