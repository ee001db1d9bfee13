// Package provider implements the LLM provider interface and clients.
package provider

import (
	"context"
)

// LLMProvider is the single capability the engine consumes. The engine
// never sees tool calls or streaming; all reasoning happens inside the
// returned text.
type LLMProvider interface {
	// Generate sends a completion request and returns the response text.
	Generate(ctx context.Context, prompt, systemPrompt string, temperature float64, maxTokens int) (string, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// Config configures the LLM provider and its concurrency gate.
type Config struct {
	APIKey        string `json:"apiKey" envconfig:"LLM_API_KEY"`
	APIBase       string `json:"apiBase" envconfig:"LLM_API_BASE"`
	Model         string `json:"model" envconfig:"LLM_MODEL"`
	MaxConcurrent int    `json:"maxConcurrent" envconfig:"LLM_MAX_CONCURRENT"`
}

// DefaultConfig returns provider defaults.
func DefaultConfig() Config {
	return Config{
		APIBase:       "https://api.openai.com/v1",
		Model:         "anthropic/claude-sonnet-4-5",
		MaxConcurrent: 4,
	}
}
