package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ppiankov/kidregistry/internal/util"
)

// OllamaProvider calls a local Ollama server
type OllamaProvider struct {
	client *resty.Client
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider defaults to http://localhost:11434
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second // local models are slower
	}
	transport, err := util.Transport(config.HTTPProxy, config.HTTPSProxy)
	if err != nil {
		return nil, err
	}

	client := resty.New().
		SetTransport(transport).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &OllamaProvider{client: client, config: config}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Get("/api/tags")
	return err == nil && resp.IsSuccess()
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req.Model)
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., qwen2.5:7b)")
	}
	body := ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			Temperature: 0.1,
			NumPredict:  p.config.maxTokens(req.MaxTokens),
		},
	}
	if req.JSON {
		body.Format = "json"
	}

	var out ollamaResponse
	var apiErr ollamaError
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/generate")
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode(), apiErr.Error)
		}
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode(), resp.String())
	}

	text := strings.TrimSpace(out.Response)
	tokens := out.PromptEvalCount + out.EvalCount
	if tokens == 0 {
		tokens = (len(req.Prompt) + len(text)) / 4
	}
	return &CompletionResponse{Text: text, Model: out.Model, TokensUsed: tokens}, nil
}
