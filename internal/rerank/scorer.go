// Package rerank provides pairwise (cross-encoder) reranking of fused
// retrieval candidates against the query.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinbrief/clinbrief/internal/metrics"
	"github.com/clinbrief/clinbrief/internal/models"
)

// Scorer is the external pairwise relevance oracle: it scores a
// (query, document text) pair jointly. Higher means more relevant; the scale
// is the oracle's own and only comparable between calls with the same query.
type Scorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// HTTPScorer calls a cross-encoder scoring service over a single JSON
// endpoint: POST {"query": ..., "text": ...} -> {"score": ...}.
type HTTPScorer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPScorer creates a scorer client for the service at baseURL.
func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type scoreRequest struct {
	Query string `json:"query"`
	Text  string `json:"text"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score returns the oracle's relevance score for the pair. Any transport or
// service failure is wrapped with models.ErrOracleUnavailable so the
// orchestrator can fall back to the fused order.
func (s *HTTPScorer) Score(ctx context.Context, query, text string) (float64, error) {
	body, err := json.Marshal(scoreRequest{Query: query, Text: text})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("scoring service unreachable: %v: %w", err, models.ErrOracleUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("scoring service returned %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(raw)), models.ErrOracleUnavailable)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("decode score response: %v: %w", err, models.ErrOracleUnavailable)
	}
	metrics.RerankRequestsTotal.WithLabelValues("success").Inc()
	return out.Score, nil
}
