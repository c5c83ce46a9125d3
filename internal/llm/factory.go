package llm

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/abhisek/codetutor/internal/store"
)

// NewStreamer creates a Streamer from configuration.
// It returns the streamer wrapped with retry and logging middleware.
func NewStreamer(ctx context.Context, cfg Config, eventRepo store.EventRepo) (Streamer, error) {
	var base Streamer
	var err error

	switch cfg.Provider {
	case "ollama":
		base = NewOllamaStreamer(cfg.Ollama)
	case "openai":
		base, err = NewOpenAIStreamer(cfg.OpenAI)
	case "anthropic":
		base, err = NewAnthropicStreamer(cfg.Anthropic)
	case "gemini":
		base, err = NewGeminiStreamer(ctx, cfg.Gemini)
	case "mock":
		return NewMockStreamer(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Wrap with middleware: caller → timeout → retry → logging → base
	logged := WithLogging(base, cfg.Provider, eventRepo)
	retried := WithRetry(logged, cfg.Retry)

	return WithTimeout(retried, cfg.Timeout), nil
}

type timeoutStreamer struct {
	Streamer
	timeout time.Duration
}

// WithTimeout bounds every stream, retries included. A zero timeout
// returns s unchanged.
func WithTimeout(s Streamer, timeout time.Duration) Streamer {
	if timeout <= 0 {
		return s
	}
	return &timeoutStreamer{Streamer: s, timeout: timeout}
}

func (t *timeoutStreamer) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		for chunk, err := range t.Streamer.Stream(ctx, req) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}
