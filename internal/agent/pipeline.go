package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/search"
)

// ResearchReport is the full output of one pipeline run.
type ResearchReport struct {
	Topic       string                `json:"topic"`
	Expansion   *ExpansionResult      `json:"expansion"`
	Results     []*models.FusedResult `json:"results"`
	Summary     *Summary              `json:"summary"`
	Brief       *Brief                `json:"brief"`
	Signals     models.SignalSet      `json:"signals"`
	Degraded    bool                  `json:"degraded"`
	ElapsedMS   int64                 `json:"elapsed_ms"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Pipeline chains the three agents: expand the topic into query variants,
// retrieve and summarize, then write the brief.
type Pipeline struct {
	expander   *Expander
	summarizer *Summarizer
	writer     *Writer
	engine     *search.Engine
	logger     *zap.Logger
}

// NewPipeline creates the research pipeline.
func NewPipeline(
	expander *Expander,
	summarizer *Summarizer,
	writer *Writer,
	engine *search.Engine,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		expander:   expander,
		summarizer: summarizer,
		writer:     writer,
		engine:     engine,
		logger:     logger,
	}
}

// Research runs the full pipeline for one topic.
func (p *Pipeline) Research(ctx context.Context, topic string, topK int, useReranking bool) (*ResearchReport, error) {
	start := time.Now()

	expansion, err := p.expander.Expand(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", topic, err)
	}
	p.logger.Info("topic expanded",
		zap.String("topic", topic),
		zap.Int("variants", len(expansion.Expansion.ExpandedQueries)),
		zap.Bool("fallback", expansion.Fallback))

	retrieval, err := p.engine.Retrieve(ctx, &models.RetrievalRequest{
		Variants:     expansion.Expansion.ExpandedQueries,
		Topic:        topic,
		TopK:         topK,
		UseReranking: useReranking,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve %q: %w", topic, err)
	}

	summary, err := p.summarizer.Summarize(ctx, topic, retrieval.Results)
	if err != nil {
		return nil, fmt.Errorf("summarize %q: %w", topic, err)
	}

	brief, err := p.writer.WriteBrief(ctx, topic, summary)
	if err != nil {
		return nil, fmt.Errorf("write brief %q: %w", topic, err)
	}

	return &ResearchReport{
		Topic:       topic,
		Expansion:   expansion,
		Results:     retrieval.Results,
		Summary:     summary,
		Brief:       brief,
		Signals:     retrieval.Signals,
		Degraded:    retrieval.Degraded,
		ElapsedMS:   time.Since(start).Milliseconds(),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
