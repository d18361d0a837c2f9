// Package llm provides chat completion access for the research agents.
package llm

import "context"

// Generator produces a completion for a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, temperature float32) (string, error)
	Close() error
}
