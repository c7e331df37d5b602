// Package llm extracts suspect names from news text with a hosted or local language model
package llm

import "context"

// Provider completes a single prompt
type Provider interface {
	Name() string

	// Complete returns the model's reply to req
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks that the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one system+user exchange
type CompletionRequest struct {
	System    string
	Prompt    string
	Model     string // overrides Config.Model
	MaxTokens int    // overrides Config.MaxTokens
	JSON      bool   // ask the provider for a JSON object reply
}

// CompletionResponse is the model reply
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "ollama", or "" to disable
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests in seconds
	Timeout int

	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig leaves extraction disabled
func DefaultConfig() Config {
	return Config{
		Timeout:   30,
		MaxTokens: 1000,
	}
}

func (c Config) model(override string) string {
	if override != "" {
		return override
	}
	return c.Model
}

func (c Config) maxTokens(override int) int {
	switch {
	case override > 0:
		return override
	case c.MaxTokens > 0:
		return c.MaxTokens
	}
	return 1000
}
