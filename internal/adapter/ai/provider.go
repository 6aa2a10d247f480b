package ai

import (
	"fmt"

	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// NewSummarizer picks the summarization backend by name ("deepseek" or "ollama").
func NewSummarizer(provider string, cfg EndpointConfig) (port.Summarizer, error) {
	switch provider {
	case "", "deepseek":
		return NewDeepSeekProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}
