package domain

import "context"

// Default model settings for the Groq provider.
const (
	DefaultGroqModel  = "llama-3.1-8b-instant"
	DefaultTimeout    = 30
	DefaultMaxRetries = 3
)

// ModelConfig is an immutable description of how to call an LLM.
type ModelConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int // 0 = provider default
	Timeout     int // seconds
	MaxRetries  int
}

// Validate checks the configured bounds.
func (c ModelConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return NewError(KindConfig, "temperature must be between 0 and 2", map[string]any{"temperature": c.Temperature})
	}
	if c.MaxTokens < 0 {
		return NewError(KindConfig, "maxTokens must be positive", map[string]any{"max_tokens": c.MaxTokens})
	}
	if c.Timeout <= 0 {
		return NewError(KindConfig, "timeout must be positive", map[string]any{"timeout": c.Timeout})
	}
	if c.MaxRetries < 0 {
		return NewError(KindConfig, "maxRetries must be non-negative", map[string]any{"max_retries": c.MaxRetries})
	}
	return nil
}

// GroqModelConfig returns the default Groq configuration.
func GroqModelConfig(model string) ModelConfig {
	if model == "" {
		model = DefaultGroqModel
	}
	return ModelConfig{
		Provider:    "groq",
		Model:       model,
		Temperature: 0.7,
		Timeout:     DefaultTimeout,
		MaxRetries:  DefaultMaxRetries,
	}
}

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Provider is the interface all LLM adapters implement. Generate
// returns one assistant message; GenerateWithTools may return a
// message whose metadata carries pending tool invocations under
// the "tool_calls" key.
type Provider interface {
	Generate(ctx context.Context, messages []Message, cfg ModelConfig) (Message, error)
	GenerateWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, cfg ModelConfig) (Message, error)
	Name() string
	Available() bool
}
