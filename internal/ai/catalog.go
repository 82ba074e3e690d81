package ai

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var backendIDRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// BackendConfig describes one LLM backend in ai_providers.yaml.
type BackendConfig struct {
	ID        string `yaml:"id"`
	Kind      string `yaml:"kind"` // openai | gateway | anthropic
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

type fileConfig struct {
	Backends []BackendConfig `yaml:"backends"`
}

// LoadCatalog parses the backend catalog file. A missing file is not an
// error: the caller falls back to env-configured defaults.
func LoadCatalog(path string) ([]BackendConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, b := range cfg.Backends {
		if !backendIDRegexp.MatchString(b.ID) {
			return nil, fmt.Errorf("backend %d: invalid id %q", i, b.ID)
		}
		switch b.Kind {
		case KindOpenAI, KindAnthropic:
		case KindGateway:
			if b.BaseURL == "" {
				return nil, fmt.Errorf("backend %q: gateway kind requires base_url", b.ID)
			}
		default:
			return nil, fmt.Errorf("backend %q: unknown kind %q", b.ID, b.Kind)
		}
	}
	return cfg.Backends, nil
}

// BuildBackends instantiates the catalog entries whose API key env var is
// set. Entries without a key are skipped silently: a catalog may describe
// more backends than one deployment enables.
func BuildBackends(configs []BackendConfig) map[string]Backend {
	backends := make(map[string]Backend, len(configs))
	for _, c := range configs {
		apiKey := strings.TrimSpace(os.Getenv(c.APIKeyEnv))
		if apiKey == "" {
			continue
		}
		switch c.Kind {
		case KindOpenAI:
			backends[c.ID] = NewOpenAIBackend(apiKey)
		case KindGateway:
			backends[c.ID] = NewGatewayBackend(c.ID, apiKey, c.BaseURL)
		case KindAnthropic:
			backends[c.ID] = NewAnthropicBackend(apiKey)
		}
	}
	return backends
}

// DefaultModels maps catalog entries to their configured model names.
func DefaultModels(configs []BackendConfig) map[string]string {
	models := make(map[string]string, len(configs))
	for _, c := range configs {
		if c.Model != "" {
			models[c.ID] = c.Model
		}
	}
	return models
}
