package llm

import (
	"context"
	"time"

	"github.com/credence-dev/credence/internal/model"
)

// Provider defines the transport to one language-model backend. Every
// analysis call runs in JSON mode: a system prompt describing the task and
// the required reply shape, plus the content as the user message.
type Provider interface {
	// Name returns the provider name
	Name() string

	// CompleteJSON sends one chat completion and returns the raw reply,
	// which is expected to be a single JSON object
	CompleteJSON(ctx context.Context, systemPrompt, userMessage string) ([]byte, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for one API request
	Timeout time.Duration

	// Temperature for sampling; analysis wants it low
	Temperature float32

	// MaxClaims caps how many claims one extraction may return
	MaxClaims int

	// Retry policy for failed completions
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "", // Disabled by default
		Model:          "",
		Timeout:        60 * time.Second,
		Temperature:    0.2,
		MaxClaims:      10,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		RetryMaxDelay:  30 * time.Second,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:       mc.Provider,
		Model:          mc.Model,
		APIKey:         mc.APIKey,
		BaseURL:        mc.BaseURL,
		Timeout:        mc.Timeout,
		Temperature:    mc.Temperature,
		MaxClaims:      mc.MaxClaims,
		MaxRetries:     mc.MaxRetries,
		RetryBaseDelay: mc.RetryBaseDelay,
		RetryMaxDelay:  mc.RetryMaxDelay,
	}
}
