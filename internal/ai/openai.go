package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend serves chat completions through the OpenAI API or any
// OpenAI-compatible gateway reachable at a custom base URL.
type OpenAIBackend struct {
	name   string
	client *openai.Client
}

// NewOpenAIBackend talks to api.openai.com.
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{name: KindOpenAI, client: openai.NewClient(apiKey)}
}

// NewGatewayBackend talks to an OpenAI-compatible endpoint (the legacy
// Abacus gateway, a proxy, a self-hosted server) at baseURL.
func NewGatewayBackend(name, apiKey, baseURL string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIBackend{name: name, client: openai.NewClientWithConfig(cfg)}
}

func (b *OpenAIBackend) Name() string { return b.name }

func (b *OpenAIBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat: empty choices", b.name)
	}
	return resp.Choices[0].Message.Content, nil
}
