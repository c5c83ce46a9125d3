package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *OpenAIStreamer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewOllamaStreamer(OllamaConfig{BaseURL: server.URL + "/v1/", Model: "deepseek-r1:1.5b"})
}

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		data, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion.chunk",
			"created": 1234567890,
			"model":   "deepseek-r1:1.5b",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"role": "assistant", "content": c}},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestOllamaStreamer_StreamsChunks(t *testing.T) {
	var gotBody map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		writeSSE(w, "<think>", "hmm", "</think>", "Hello", "")
	}

	s := newTestOllama(t, handler)
	var chunks []string
	for chunk, err := range s.Stream(context.Background(), Request{
		Model: "qwen3:8b",
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a tutor."},
			{Role: RoleUser, Content: "hi"},
		},
	}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		chunks = append(chunks, chunk.Text)
	}

	want := []string{"<think>", "hmm", "</think>", "Hello"}
	if fmt.Sprint(chunks) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, chunks)
	}
	if gotBody["model"] != "qwen3:8b" {
		t.Fatalf("expected model override, got %v", gotBody["model"])
	}
	if gotBody["stream"] != true {
		t.Fatalf("expected stream=true, got %v", gotBody["stream"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Fatalf("expected system message first, got %v", msgs[0])
	}
}

func TestOllamaStreamer_ModelNotFound(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": `model "llama3:70b" not found, try pulling it first`,
				"type":    "api_error",
			},
		})
	}

	s := newTestOllama(t, handler)
	_, err := collect(t, s, Request{Model: "llama3:70b"})
	var nf *ErrModelNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrModelNotFound, got %T: %v", err, err)
	}
	if nf.Model != "llama3:70b" {
		t.Fatalf("expected model name in error, got %q", nf.Model)
	}
}

func TestOllamaStreamer_RateLimit(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "slow down", "type": "rate_limit"},
		})
	}

	s := newTestOllama(t, handler)
	_, err := collect(t, s, Request{})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %T: %v", err, err)
	}
}

func TestOllamaStreamer_Unreachable(t *testing.T) {
	s := NewOllamaStreamer(OllamaConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "m"})
	_, err := collect(t, s, Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %T: %v", err, err)
	}
}

func TestOllamaStreamer_ListModels(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "qwen3:8b", "object": "model", "owned_by": "library"},
				{"id": "deepseek-r1:1.5b", "object": "model", "owned_by": "library"},
			},
		})
	}

	s := newTestOllama(t, handler)
	ids, err := s.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(ids) != "[deepseek-r1:1.5b qwen3:8b]" {
		t.Fatalf("unexpected models %v", ids)
	}
}

func TestNewOpenAIStreamer_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIStreamer(OpenAIConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
