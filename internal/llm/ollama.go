package llm

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOllamaURL is the OpenAI-compatible endpoint of a local Ollama.
const DefaultOllamaURL = "http://localhost:11434/v1"

// NewOllamaStreamer creates a streamer for a local Ollama host. Ollama
// exposes an OpenAI-compatible API, so the OpenAI SDK is reused. No API
// key is needed.
func NewOllamaStreamer(cfg OllamaConfig) *OpenAIStreamer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	config := openai.DefaultConfig("ollama")
	config.BaseURL = strings.TrimRight(baseURL, "/")
	return newOpenAIStreamerRaw(config, cfg.Model)
}
