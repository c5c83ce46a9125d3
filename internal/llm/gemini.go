package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// geminiModels maps friendly names to Gemini model IDs.
var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.0-flash",
	"gemini-pro":   "gemini-2.0-pro",
}

// GeminiStreamer implements Streamer using the Google Gemini SDK.
type GeminiStreamer struct {
	client *genai.Client
	model  string
}

// NewGeminiStreamer creates a new Gemini streamer.
func NewGeminiStreamer(ctx context.Context, cfg GeminiConfig) (*GeminiStreamer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiStreamer{
		client: client,
		model:  resolveModel(cfg.Model, geminiModels),
	}, nil
}

func (p *GeminiStreamer) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		system, msgs := splitSystem(req)

		config := &genai.GenerateContentConfig{
			MaxOutputTokens: int32(req.MaxTokens),
		}
		if req.Temperature > 0 {
			temp := float32(req.Temperature)
			config.Temperature = &temp
		}
		if system != "" {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: system}},
			}
		}

		model := modelFor(req, p.model)
		for result, err := range p.client.Models.GenerateContentStream(ctx, model, buildGeminiContents(msgs), config) {
			if err != nil {
				yield(Chunk{}, mapGeminiError(err, model))
				return
			}
			text := result.Text()
			if text == "" {
				continue
			}
			if !yield(Chunk{Text: text}, nil) {
				return
			}
		}
	}
}

func (p *GeminiStreamer) ListModels(ctx context.Context) ([]string, error) {
	var ids []string
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, mapGeminiError(err, "")
		}
		ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
	}
	return ids, nil
}

func (p *GeminiStreamer) ModelID() string {
	return p.model
}

func buildGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}
	return out
}

func mapGeminiError(err error, model string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &ErrRateLimit{Err: err}
		case apiErr.Code == http.StatusNotFound && model != "":
			return &ErrModelNotFound{Model: model, Err: err}
		}
	}
	return &ErrProviderUnavailable{Err: err}
}
