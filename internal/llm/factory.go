package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates an AI provider based on configuration. An empty
// provider name is an error: the pipeline cannot run without one.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "mock":
		return NewMockProvider(), nil

	case "":
		return nil, fmt.Errorf("no AI provider configured (supported: openai, ollama, mock)")

	default:
		return nil, fmt.Errorf("unknown AI provider: %s (supported: openai, ollama, mock)", config.Provider)
	}
}
