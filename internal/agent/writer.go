package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/llm"
)

const writerSystem = "You are a clinical research writer. Always respond with valid JSON only."

const briefPrompt = `You are a clinical research writer. Write a concise executive brief (300 words or fewer) with inline citations.

Topic: %s
Synthesis: %s
Source Summaries: %s
Contradictions: %s

Requirements:
1. 300 words or fewer
2. Inline citations [1], [2], etc.
3. Clear, professional medical language
4. Address contradictions/limitations
5. Actionable insights for clinicians

Return a JSON object:
{
  "brief_text": "Your brief text here with [1][2] citations...",
  "word_count": 250,
  "claims": [
    {
      "claim_text": "The specific claim made",
      "citation_ids": ["1", "2"]
    }
  ]
}

Return ONLY valid JSON, no other text.`

const riskPrompt = `You are a clinical safety expert. Identify risks and quality issues.

Topic: %s
Sources: %s

Identify:
1. Contradictions between sources (severity: high/medium/low)
2. Contraindications or safety concerns
3. Low-quality studies or bias
4. Data gaps or limitations

Return a JSON object:
{
  "risk_flags": [
    {
      "flag_type": "contradiction|contraindication|low_quality|bias|data_gap",
      "severity": "high|medium|low",
      "description": "Description of the risk",
      "affected_sources": ["1", "2"]
    }
  ]
}

Return ONLY valid JSON, no other text.`

// Claim ties a statement in the brief to the sources backing it.
type Claim struct {
	ClaimText   string   `json:"claim_text"`
	CitationIDs []string `json:"citation_ids"`
}

// RiskFlag records a safety or quality concern found during fact checking.
type RiskFlag struct {
	FlagType        string   `json:"flag_type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	AffectedSources []string `json:"affected_sources"`
}

// Brief is the final executive brief with claims and risk flags. Fallback
// marks a brief built from unparseable model output; Raw then holds the model
// text verbatim.
type Brief struct {
	BriefText string     `json:"brief_text"`
	WordCount int        `json:"word_count"`
	Claims    []Claim    `json:"claims"`
	RiskFlags []RiskFlag `json:"risk_flags"`
	Fallback  bool       `json:"fallback,omitempty"`
	Raw       string     `json:"raw,omitempty"`
}

// Writer produces the executive brief and its risk assessment.
type Writer struct {
	generator   llm.Generator
	temperature float32
	logger      *zap.Logger
}

// NewWriter creates a brief writing agent.
func NewWriter(generator llm.Generator, temperature float32, logger *zap.Logger) *Writer {
	return &Writer{generator: generator, temperature: temperature, logger: logger}
}

// WriteBrief generates the executive brief from a summary, then runs a risk
// assessment pass over the source summaries. Model unavailability is an
// error; unparseable model output is not: the raw text is carried on a
// fallback brief. Risk assessment failure is non-fatal: the brief is
// returned with no flags.
func (w *Writer) WriteBrief(ctx context.Context, topic string, summary *Summary) (*Brief, error) {
	sourcesJSON, err := json.Marshal(summary.SourceSummaries)
	if err != nil {
		return nil, fmt.Errorf("marshal source summaries: %w", err)
	}
	contradictionsJSON, err := json.Marshal(summary.Contradictions)
	if err != nil {
		return nil, fmt.Errorf("marshal contradictions: %w", err)
	}

	raw, err := w.generator.Generate(ctx, writerSystem,
		fmt.Sprintf(briefPrompt, topic, summary.Synthesis, sourcesJSON, contradictionsJSON),
		w.temperature)
	if err != nil {
		return nil, fmt.Errorf("brief writing: %w", err)
	}
	var brief Brief
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(raw)), &brief); err != nil {
		w.logger.Warn("brief output not parseable, using fallback",
			zap.String("topic", topic), zap.Error(err))
		text := strings.TrimSpace(raw)
		brief = Brief{
			BriefText: text,
			WordCount: len(strings.Fields(text)),
			Claims:    []Claim{},
			Fallback:  true,
			Raw:       raw,
		}
	}

	flags, err := w.assessRisks(ctx, topic, string(sourcesJSON))
	if err != nil {
		w.logger.Warn("risk assessment failed", zap.String("topic", topic), zap.Error(err))
	} else {
		brief.RiskFlags = flags
	}
	return &brief, nil
}

func (w *Writer) assessRisks(ctx context.Context, topic, sources string) ([]RiskFlag, error) {
	raw, err := w.generator.Generate(ctx, writerSystem,
		fmt.Sprintf(riskPrompt, topic, sources), w.temperature)
	if err != nil {
		return nil, err
	}
	var out struct {
		RiskFlags []RiskFlag `json:"risk_flags"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(raw)), &out); err != nil {
		return nil, err
	}
	return out.RiskFlags, nil
}
