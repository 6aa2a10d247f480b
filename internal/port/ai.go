package port

import "context"

// Summarizer abstracts the LLM backend behind a single prompt-in / text-out call.
// Implementations can target DeepSeek, Ollama, or any compatible API.
type Summarizer interface {
	// ModelName returns the identifier of the model being used.
	ModelName() string

	// Complete sends one user prompt and returns the first choice's text.
	// It does not retry.
	Complete(ctx context.Context, prompt string) (string, error)
}
