// Package agent implements the research pipeline: query expansion, retrieval
// with summarization, and brief writing, each backed by a chat model.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/llm"
)

const expansionSystem = "You are a clinical research query expert. Always respond with valid JSON only."

const expansionPrompt = `You are a clinical research query expert. Given a research topic, expand it into:
1. 3-5 optimized search queries for academic databases
2. Key MeSH terms and synonyms
3. Exclusion criteria (irrelevant topics to filter out)
4. Source type priorities (RCT, meta-analysis, clinical guidelines, etc.)

Topic: %s

Return a JSON object with:
{
  "expanded_queries": ["query1", "query2", ...],
  "mesh_terms": ["term1", "term2", ...],
  "synonyms": {"concept": ["syn1", "syn2"]},
  "exclusion_criteria": ["criterion1", "criterion2", ...],
  "source_priorities": ["type1", "type2", ...]
}

Return ONLY valid JSON, no other text.`

// Expansion is the structured output of query expansion.
type Expansion struct {
	ExpandedQueries   []string            `json:"expanded_queries"`
	MeshTerms         []string            `json:"mesh_terms"`
	Synonyms          map[string][]string `json:"synonyms"`
	ExclusionCriteria []string            `json:"exclusion_criteria"`
	SourcePriorities  []string            `json:"source_priorities"`
}

// ExpansionResult wraps an Expansion with provenance. Fallback is set when
// the model output could not be parsed and the topic itself was used as the
// sole query; Raw then carries the unparsed output for debugging.
type ExpansionResult struct {
	Expansion Expansion `json:"expansion"`
	Fallback  bool      `json:"fallback,omitempty"`
	Raw       string    `json:"raw,omitempty"`
}

// Expander turns a research topic into a set of search query variants.
type Expander struct {
	generator   llm.Generator
	temperature float32
	logger      *zap.Logger
}

// NewExpander creates a query expansion agent.
func NewExpander(generator llm.Generator, temperature float32, logger *zap.Logger) *Expander {
	return &Expander{generator: generator, temperature: temperature, logger: logger}
}

// Expand expands topic into search queries. Model unavailability is an error;
// unparseable model output is not: the topic becomes the sole query and the
// result is marked as a fallback.
func (e *Expander) Expand(ctx context.Context, topic string) (*ExpansionResult, error) {
	raw, err := e.generator.Generate(ctx, expansionSystem, fmt.Sprintf(expansionPrompt, topic), e.temperature)
	if err != nil {
		return nil, fmt.Errorf("query expansion: %w", err)
	}

	var expansion Expansion
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(raw)), &expansion); err != nil {
		e.logger.Warn("expansion output not parseable, using topic as sole query",
			zap.String("topic", topic), zap.Error(err))
		return &ExpansionResult{
			Expansion: Expansion{
				ExpandedQueries:  []string{topic},
				SourcePriorities: []string{"meta_analysis", "rct", "clinical_guideline"},
			},
			Fallback: true,
			Raw:      raw,
		}, nil
	}

	cleaned := expansion.ExpandedQueries[:0]
	for _, q := range expansion.ExpandedQueries {
		if strings.TrimSpace(q) != "" {
			cleaned = append(cleaned, strings.TrimSpace(q))
		}
	}
	expansion.ExpandedQueries = cleaned
	if len(expansion.ExpandedQueries) == 0 {
		expansion.ExpandedQueries = []string{topic}
	}
	return &ExpansionResult{Expansion: expansion}, nil
}
