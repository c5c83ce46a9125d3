package llm

import (
	"context"
	"iter"
)

// Streamer is the core abstraction for talking to a model host.
// Consumers call Stream with a Request and range over the returned chunks.
type Streamer interface {
	// Stream sends the conversation to the model and yields response text
	// as it arrives. A failure is yielded once as the final element.
	// Breaking out of the loop closes the underlying connection.
	Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error]

	// ListModels returns the identifiers of the models the host can serve.
	ListModels(ctx context.Context) ([]string, error)

	// ModelID returns the default model identifier.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// Model overrides the streamer's default model when set.
	Model string

	// System is the system prompt. It is sent before Messages.
	System string

	// Messages is the conversation history, oldest first. Messages with
	// RoleSystem are merged into the system prompt by providers that do
	// not accept them inline.
	Messages []Message

	// MaxTokens caps the response length. Zero leaves it to the provider.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role is the message sender role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Chunk is one piece of a streamed response.
type Chunk struct {
	Text string
}

// modelFor returns the model a request should be served by.
func modelFor(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}

// splitSystem folds the system prompt and any RoleSystem messages into a
// single string and returns the remaining conversation.
func splitSystem(req Request) (string, []Message) {
	system := req.System
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		msgs = append(msgs, m)
	}
	return system, msgs
}
