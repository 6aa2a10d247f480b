package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// Defaults for the DeepSeek OpenAI-compatible API.
const (
	DefaultDeepSeekURL   = "https://api.deepseek.com/v1"
	DefaultDeepSeekModel = "deepseek-chat"
)

// DeepSeekProvider implements port.Summarizer against an OpenAI-style
// /chat/completions endpoint.
type DeepSeekProvider struct {
	cfg        EndpointConfig
	httpClient *http.Client
}

// NewDeepSeekProvider creates a new DeepSeek-backed summarizer.
func NewDeepSeekProvider(cfg EndpointConfig) *DeepSeekProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeepSeekURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultDeepSeekModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &DeepSeekProvider{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

// ModelName returns the chat model identifier.
func (d *DeepSeekProvider) ModelName() string {
	return d.cfg.Model
}

// Complete sends a single user message and returns the first choice.
func (d *DeepSeekProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": d.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, err := post(ctx, d.httpClient, "deepseek", d.cfg, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", port.NewUpstreamError("deepseek", 0, fmt.Errorf("decode: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", port.NewUpstreamError("deepseek", 0, fmt.Errorf("response has no choices"))
	}

	return resp.Choices[0].Message.Content, nil
}
