package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicStreamer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewAnthropicStreamer(
		AnthropicConfig{APIKey: "test-key", Model: "claude-haiku"},
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("create streamer: %v", err)
	}
	return s
}

func writeAnthropicEvent(w http.ResponseWriter, event string, data map[string]any) {
	b, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}

func TestAnthropicStreamer_StreamsTextDeltas(t *testing.T) {
	var gotBody map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		writeAnthropicEvent(w, "message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": "msg_test", "type": "message", "role": "assistant",
				"content": []any{}, "model": "claude-haiku-4-5-20251001",
				"usage": map[string]any{"input_tokens": 10, "output_tokens": 0},
			},
		})
		writeAnthropicEvent(w, "content_block_start", map[string]any{
			"type": "content_block_start", "index": 0,
			"content_block": map[string]any{"type": "text", "text": ""},
		})
		for _, text := range []string{"Try ", "a loop."} {
			writeAnthropicEvent(w, "content_block_delta", map[string]any{
				"type": "content_block_delta", "index": 0,
				"delta": map[string]any{"type": "text_delta", "text": text},
			})
		}
		writeAnthropicEvent(w, "content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
		writeAnthropicEvent(w, "message_stop", map[string]any{"type": "message_stop"})
	}

	s := newTestAnthropic(t, handler)
	got, err := collect(t, s, Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a tutor."},
			{Role: RoleUser, Content: "help"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Try a loop." {
		t.Fatalf("unexpected text %q", got)
	}
	if gotBody["model"] != "claude-haiku-4-5-20251001" {
		t.Fatalf("unexpected model %v", gotBody["model"])
	}
	if msgs, _ := gotBody["messages"].([]any); len(msgs) != 1 {
		t.Fatalf("expected system prompt lifted out of messages, got %v", gotBody["messages"])
	}
	if gotBody["system"] == nil {
		t.Fatal("expected system prompt to be sent")
	}
}

func TestAnthropicStreamer_RateLimit(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "rate_limit_error", "message": "Rate limited"},
		})
	}

	s := newTestAnthropic(t, handler)
	_, err := collect(t, s, Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %T: %v", err, err)
	}
}

func TestNewAnthropicStreamer_RequiresKey(t *testing.T) {
	if _, err := NewAnthropicStreamer(AnthropicConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
