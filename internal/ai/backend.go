// Package ai generates draft review responses and strong-point summaries
// through interchangeable LLM backends. Drafts are an enhancement: every
// failure path degrades to an empty result instead of blocking ingestion.
package ai

import "context"

// Backend kinds accepted by the catalog.
const (
	KindOpenAI    = "openai"
	KindGateway   = "gateway" // OpenAI-compatible endpoint at a custom base URL
	KindAnthropic = "anthropic"
)

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Backend is one LLM provider able to answer a completion request with a
// single text result.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Settings selects the backend and prompt parameters for one call. It is
// resolved by the caller from tenant plus global configuration and passed
// explicitly; backends never read ambient state.
type Settings struct {
	Provider    string // backend id from the catalog
	Model       string
	Language    string // ISO 639-1 output language
	CompanyName string
}
