package llm

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/abhisek/codetutor/internal/store"
)

func openTestRepo(t *testing.T) store.EventRepo {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.EventRepo()
}

func TestLogging_RecordsSuccessfulStream(t *testing.T) {
	repo := openTestRepo(t)
	mock := NewMockStreamer(MockScript{Chunks: []string{"Hi", " there"}})
	s := WithLogging(mock, "ollama", repo)

	ctx := WithPurpose(context.Background(), "chat")
	req := Request{Model: "qwen3:8b", Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	for _, err := range s.Stream(ctx, req) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Provider != "ollama" || e.Model != "qwen3:8b" || e.Purpose != "chat" {
		t.Fatalf("unexpected event header: %+v", e.LLMRequestEventData)
	}
	if !e.Success || e.Chunks != 2 || e.ResponseBody != "Hi there" {
		t.Fatalf("unexpected event body: %+v", e.LLMRequestEventData)
	}
}

func TestLogging_RecordsFailureAndAbandon(t *testing.T) {
	repo := openTestRepo(t)
	mock := NewMockStreamer(
		MockScript{Err: &ErrProviderUnavailable{Err: errors.New("refused")}},
		MockScript{Chunks: []string{"a", "b"}},
	)
	s := WithLogging(mock, "ollama", repo)

	for range s.Stream(context.Background(), Request{}) {
	}
	for range s.Stream(context.Background(), Request{}) {
		break
	}

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.Success {
			t.Fatalf("expected failure, got %+v", e.LLMRequestEventData)
		}
		if e.Purpose != "unknown" {
			t.Fatalf("expected default purpose, got %q", e.Purpose)
		}
	}
	if events[1].ErrorMessage == "" {
		t.Fatal("expected error message on failed request")
	}
}
