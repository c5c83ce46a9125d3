package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicModels maps friendly names to Anthropic model IDs.
var anthropicModels = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

// defaultAnthropicMaxTokens is sent when the request leaves MaxTokens
// unset; the Messages API requires a value.
const defaultAnthropicMaxTokens = 2048

// AnthropicStreamer implements Streamer using the Anthropic SDK.
type AnthropicStreamer struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicStreamer creates a new Anthropic streamer.
func NewAnthropicStreamer(cfg AnthropicConfig, opts ...option.RequestOption) (*AnthropicStreamer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client := anthropic.NewClient(opts...)

	return &AnthropicStreamer{
		client: &client,
		model:  resolveModel(cfg.Model, anthropicModels),
	}, nil
}

func (p *AnthropicStreamer) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		system, msgs := splitSystem(req)

		maxTokens := int64(req.MaxTokens)
		if maxTokens == 0 {
			maxTokens = defaultAnthropicMaxTokens
		}
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(modelFor(req, p.model)),
			MaxTokens: maxTokens,
			Messages:  buildAnthropicMessages(msgs),
		}
		if system != "" {
			params.System = []anthropic.TextBlockParam{
				{Text: system},
			}
		}
		if req.Temperature > 0 {
			params.Temperature = anthropic.Float(req.Temperature)
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := event.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			if !yield(Chunk{Text: delta.Text}, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(Chunk{}, mapAnthropicError(err, string(params.Model)))
		}
	}
}

func (p *AnthropicStreamer) ListModels(ctx context.Context) ([]string, error) {
	var ids []string
	pager := p.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for pager.Next() {
		ids = append(ids, pager.Current().ID)
	}
	if err := pager.Err(); err != nil {
		return nil, mapAnthropicError(err, "")
	}
	return ids, nil
}

func (p *AnthropicStreamer) ModelID() string {
	return p.model
}

func buildAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(msgs))
	for i, m := range msgs {
		role := anthropic.MessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		out[i] = anthropic.MessageParam{
			Role: role,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(m.Content),
			},
		}
	}
	return out
}

func mapAnthropicError(err error, model string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &ErrRateLimit{Err: err}
		case apiErr.StatusCode == http.StatusNotFound && model != "":
			return &ErrModelNotFound{Model: model, Err: err}
		}
	}
	return &ErrProviderUnavailable{Err: err}
}
