package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/llm"
	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/pkg/utils"
)

// maxSummarySources bounds how many sources go into one summarization prompt.
const maxSummarySources = 10

// maxSourceSnippet bounds the abstract excerpt per source in the prompt.
const maxSourceSnippet = 500

const summarySystem = "You are a clinical research summarization expert. Always respond with valid JSON only."

const summaryPrompt = `You are a clinical research summarization expert. Create a hierarchical summary of the following sources.

Topic: %s
Sources: %s

Create:
1. High-level synthesis (2-3 sentences) - what are the key findings across all sources?
2. Source-level summaries - 1-2 sentences per source highlighting unique contributions
3. Contradiction detection - identify any conflicting findings
4. Quality assessment - note any methodological concerns

Return a JSON object:
{
  "synthesis": "...",
  "source_summaries": [
    {
      "source_id": "...",
      "summary": "...",
      "key_findings": ["finding1", "finding2"]
    }
  ],
  "contradictions": [
    {
      "claim": "...",
      "conflicting_sources": ["id1", "id2"],
      "severity": "high|medium|low"
    }
  ],
  "overall_quality": "high|medium|low"
}

Return ONLY valid JSON, no other text.`

// SourceSummary summarizes one retrieved document.
type SourceSummary struct {
	SourceID    string   `json:"source_id"`
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
}

// Contradiction records conflicting findings across sources.
type Contradiction struct {
	Claim              string   `json:"claim"`
	ConflictingSources []string `json:"conflicting_sources"`
	Severity           string   `json:"severity"`
}

// Summary is the hierarchical summary of a retrieved document set. Fallback
// marks a summary built from unparseable model output; Raw then holds the
// model text verbatim.
type Summary struct {
	Synthesis       string          `json:"synthesis"`
	SourceSummaries []SourceSummary `json:"source_summaries"`
	Contradictions  []Contradiction `json:"contradictions"`
	OverallQuality  string          `json:"overall_quality"`
	Fallback        bool            `json:"fallback,omitempty"`
	Raw             string          `json:"raw,omitempty"`
}

// Summarizer condenses retrieved documents into a hierarchical summary.
type Summarizer struct {
	generator   llm.Generator
	temperature float32
	logger      *zap.Logger
}

// NewSummarizer creates a summarization agent.
func NewSummarizer(generator llm.Generator, temperature float32, logger *zap.Logger) *Summarizer {
	return &Summarizer{generator: generator, temperature: temperature, logger: logger}
}

// Summarize produces a hierarchical summary of the retrieved results. An
// empty result set short-circuits without a model call. Model unavailability
// is an error; unparseable model output is not: the raw text is carried on a
// fallback summary.
func (s *Summarizer) Summarize(ctx context.Context, topic string, results []*models.FusedResult) (*Summary, error) {
	if len(results) == 0 {
		return &Summary{
			Synthesis:       "No documents found for this query.",
			SourceSummaries: []SourceSummary{},
			Contradictions:  []Contradiction{},
			OverallQuality:  "low",
		}, nil
	}

	sources := results
	if len(sources) > maxSummarySources {
		sources = sources[:maxSummarySources]
	}
	var sb strings.Builder
	for i, r := range sources {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Source %d (ID: %s):\nTitle: %s\nAbstract: %s",
			i+1, r.DocumentID, r.Title, utils.Snippet(r.Snippet, maxSourceSnippet))
	}

	raw, err := s.generator.Generate(ctx, summarySystem,
		fmt.Sprintf(summaryPrompt, topic, sb.String()), s.temperature)
	if err != nil {
		return nil, fmt.Errorf("summarization: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(raw)), &summary); err != nil {
		s.logger.Warn("summary output not parseable, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return &Summary{
			Synthesis:       strings.TrimSpace(raw),
			SourceSummaries: []SourceSummary{},
			Contradictions:  []Contradiction{},
			OverallQuality:  "unknown",
			Fallback:        true,
			Raw:             raw,
		}, nil
	}
	return &summary, nil
}
