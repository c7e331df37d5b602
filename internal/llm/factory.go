package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/kidregistry/internal/model"
)

// NewProvider returns the configured provider, or nil when none is configured
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the runtime config sections
func ConfigFromModel(c model.LLMConfig, h model.HTTPConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxTokens:  c.MaxTokens,
		HTTPProxy:  h.HTTPProxy,
		HTTPSProxy: h.HTTPSProxy,
	}
}
