package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clinbrief/clinbrief/internal/models"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint. BaseURL may
// point at any server speaking the OpenAI chat API, such as a local Ollama.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIGenerator implements Generator using an OpenAI-compatible chat API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a chat client for the given endpoint.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Generate runs one chat completion and returns the first choice's content.
// Transport and API failures are reported as an unavailable oracle.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %v: %w", err, models.ErrOracleUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %w", models.ErrOracleUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Close releases resources. The underlying client holds none.
func (g *OpenAIGenerator) Close() error {
	return nil
}
