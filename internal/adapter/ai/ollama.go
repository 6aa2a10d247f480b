package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// EndpointConfig holds the configuration for a single chat-completion endpoint.
type EndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.deepseek.com/v1
	Model   string // e.g. qwen3, deepseek-chat
	Token   string // Bearer token (empty = no auth)
	Timeout time.Duration
}

// OllamaProvider implements port.Summarizer using the Ollama REST API.
type OllamaProvider struct {
	cfg        EndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed summarizer.
func NewOllamaProvider(cfg EndpointConfig) *OllamaProvider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OllamaProvider{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

// ModelName returns the chat model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.cfg.Model
}

// Complete sends a single-turn prompt and returns the whole answer.
func (o *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": o.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}

	body, err := post(ctx, o.httpClient, "ollama", o.cfg, "/api/chat", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", port.NewUpstreamError("ollama", 0, fmt.Errorf("decode: %w", err))
	}
	if resp.Message.Content == "" {
		return "", port.NewUpstreamError("ollama", 0, fmt.Errorf("empty response"))
	}

	return resp.Message.Content, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// post is a helper for JSON POST requests to a chat endpoint (with optional bearer token).
// Every failure comes back as a *port.UpstreamError tagged with service.
func post(ctx context.Context, client *http.Client, service string, cfg EndpointConfig, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, port.NewUpstreamError(service, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, port.NewUpstreamError(service, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, port.NewUpstreamError(service, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	return body, nil
}
