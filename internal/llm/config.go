package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds all model host configuration.
type Config struct {
	// Provider selects which model host to use.
	// Values: "ollama", "openai", "anthropic", "gemini", "mock"
	Provider string

	Ollama    OllamaConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Retry     RetryConfig

	// Timeout bounds a single streamed response, including retries.
	// Default: 5m.
	Timeout time.Duration
}

// OllamaConfig holds local Ollama configuration.
type OllamaConfig struct {
	BaseURL string // Default: "http://localhost:11434/v1"
	Model   string // Default: "deepseek-r1:1.5b"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for compatible APIs.
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-haiku"
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "ollama",
		Ollama: OllamaConfig{
			BaseURL: DefaultOllamaURL,
			Model:   "deepseek-r1:1.5b",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 5 * time.Minute,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("CODETUTOR_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	}

	if u := os.Getenv("CODETUTOR_OLLAMA_URL"); u != "" {
		cfg.Ollama.BaseURL = u
	}
	if m := os.Getenv("CODETUTOR_OLLAMA_MODEL"); m != "" {
		cfg.Ollama.Model = m
	}

	if k := os.Getenv("CODETUTOR_OPENAI_API_KEY"); k != "" {
		cfg.OpenAI.APIKey = k
	}
	if m := os.Getenv("CODETUTOR_OPENAI_MODEL"); m != "" {
		cfg.OpenAI.Model = m
	}
	if u := os.Getenv("CODETUTOR_OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}

	if k := os.Getenv("CODETUTOR_ANTHROPIC_API_KEY"); k != "" {
		cfg.Anthropic.APIKey = k
	}
	if m := os.Getenv("CODETUTOR_ANTHROPIC_MODEL"); m != "" {
		cfg.Anthropic.Model = m
	}

	if k := os.Getenv("CODETUTOR_GEMINI_API_KEY"); k != "" {
		cfg.Gemini.APIKey = k
	}
	if m := os.Getenv("CODETUTOR_GEMINI_MODEL"); m != "" {
		cfg.Gemini.Model = m
	}

	if d := os.Getenv("CODETUTOR_LLM_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.Timeout = v
		}
	}

	return cfg
}

// Validate checks that the selected provider has what it needs to connect.
func (c Config) Validate() error {
	switch c.Provider {
	case "ollama":
		if c.Ollama.BaseURL == "" {
			return fmt.Errorf("CODETUTOR_OLLAMA_URL must not be empty")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("CODETUTOR_OPENAI_API_KEY is required for the openai provider")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("CODETUTOR_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("CODETUTOR_GEMINI_API_KEY is required for the gemini provider")
		}
	case "mock":
		// No credentials needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
