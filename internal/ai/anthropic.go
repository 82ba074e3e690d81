package ai

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend serves completions through the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
}

func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// NewAnthropicBackendWithBaseURL targets a different endpoint; tests use an
// httptest server.
func NewAnthropicBackendWithBaseURL(apiKey, baseURL string) *AnthropicBackend {
	return &AnthropicBackend{client: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))}
}

func (b *AnthropicBackend) Name() string { return KindAnthropic }

func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 500
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic chat: %w", err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}
