package models

// Method identifies which retrieval stage produced a score. Scores are only
// comparable within a single method; rank fusion exists because lexical and
// semantic scores live on different scales.
type Method string

const (
	MethodLexical  Method = "lexical"
	MethodSemantic Method = "semantic"
	MethodFused    Method = "fused"
	MethodReranked Method = "reranked"
)

// ScoredResult is a single hit from one retrieval stage. Rank is 1-indexed
// within the stage's result list (rank 1 = best).
type ScoredResult struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Method     Method  `json:"method"`
	Rank       int     `json:"rank"`
}

// FusedResult is a document's combined ranking signal after reciprocal rank
// fusion. LexicalRank and SemanticRank are 1-indexed positions in the merged
// per-method lists; 0 means the document was absent from that list.
type FusedResult struct {
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title,omitempty"`
	Snippet       string  `json:"snippet,omitempty"`
	Authors       string  `json:"authors,omitempty"`
	Category      string  `json:"category,omitempty"`
	Quality       float64 `json:"quality,omitempty"`
	Method        Method  `json:"method"`
	LexicalRank   int     `json:"lexical_rank,omitempty"`
	SemanticRank  int     `json:"semantic_rank,omitempty"`
	LexicalScore  float64 `json:"lexical_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	FusedScore    float64 `json:"fused_score"`
	RerankScore   float64 `json:"rerank_score,omitempty"`
}
