package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codetutor/internal/llm"
)

var testModel = Model{Name: "deepseek-r1", ParameterSize: "1.5b"}

func TestNew_SeedsSystemPrompt(t *testing.T) {
	s := New(llm.NewMockStreamer(), "Print Hello, World!")
	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, llm.RoleSystem, h[0].Role)
	assert.Contains(t, h[0].Content, "Print Hello, World!")
	assert.Contains(t, h[0].Content, "codetutor submit")

	empty := New(llm.NewMockStreamer(), "")
	assert.Contains(t, empty.History()[0].Content, "no instructions")
}

func TestSend_FiltersAndCommits(t *testing.T) {
	mock := llm.NewMockStreamer(llm.MockScript{
		Chunks: []string{"<think>", "they need print", "</think>", "\n\n", "Try ", "print()."},
	})
	s := New(mock, "lesson")

	var tokens []string
	var complete string
	err := s.Send(context.Background(), "how?", testModel,
		func(tok string) { tokens = append(tokens, tok) },
		func(full string) { complete = full },
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Try ", "print()."}, tokens)
	assert.Equal(t, "Try print().", complete)

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "how?"}, h[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Try print()."}, h[2])

	require.Equal(t, 1, mock.CallCount())
	assert.Equal(t, "deepseek-r1:1.5b", mock.Calls[0].Model)
	assert.Len(t, mock.Calls[0].Messages, 2, "full history is sent")
}

func TestStream_SecondTurnCarriesHistory(t *testing.T) {
	mock := llm.NewMockStreamer(
		llm.MockScript{Chunks: []string{"one"}},
		llm.MockScript{Chunks: []string{"two"}},
	)
	s := New(mock, "")

	require.NoError(t, s.Send(context.Background(), "a", testModel, nil, nil))
	require.NoError(t, s.Send(context.Background(), "b", testModel, nil, nil))

	assert.Len(t, mock.Calls[1].Messages, 4)
	assert.Len(t, s.History(), 5)
}

func TestStream_ConsumerStopDiscardsTurn(t *testing.T) {
	mock := llm.NewMockStreamer(llm.MockScript{Chunks: []string{"par", "tial", " reply"}})
	s := New(mock, "")

	for text, err := range s.Stream(context.Background(), "q", testModel) {
		require.NoError(t, err)
		assert.Equal(t, "par", text)
		break
	}

	assert.Len(t, s.History(), 1, "prompt and partial reply are dropped")
	assert.False(t, s.Busy())
}

func TestStream_CancelDiscardsTurn(t *testing.T) {
	mock := llm.NewMockStreamer(llm.MockScript{Chunks: []string{"a", "b", "c"}})
	s := New(mock, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	var gotErr error
	for text, err := range s.Stream(ctx, "q", testModel) {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, text)
		cancel()
	}

	assert.Equal(t, []string{"a"}, got)
	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Len(t, s.History(), 1)
}

func TestStream_BackendErrorDiscardsTurn(t *testing.T) {
	mock := llm.NewMockStreamer(llm.MockScript{
		Chunks: []string{"half"},
		Err:    &llm.ErrProviderUnavailable{Err: errors.New("connection reset")},
	})
	s := New(mock, "")

	err := s.Send(context.Background(), "q", testModel, nil, nil)
	var unavail *llm.ErrProviderUnavailable
	require.ErrorAs(t, err, &unavail)
	assert.Len(t, s.History(), 1)
}

func TestStream_RejectsConcurrentSend(t *testing.T) {
	mock := llm.NewMockStreamer(
		llm.MockScript{Chunks: []string{"first", "reply"}},
		llm.MockScript{Chunks: []string{"never"}},
	)
	s := New(mock, "")

	var nestedErr error
	for _, err := range s.Stream(context.Background(), "one", testModel) {
		require.NoError(t, err)
		if nestedErr == nil {
			nestedErr = s.Send(context.Background(), "two", testModel, nil, nil)
		}
	}

	assert.ErrorIs(t, nestedErr, ErrBusy)
	assert.Equal(t, 1, mock.CallCount())
	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, "firstreply", h[2].Content)
}

func TestStream_EmptyPrompt(t *testing.T) {
	s := New(llm.NewMockStreamer(), "")
	err := s.Send(context.Background(), "  ", testModel, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestModels_DedupesAndNeverRemoves(t *testing.T) {
	mock := llm.NewMockStreamer()
	s := New(mock, "")
	ctx := context.Background()

	mock.SetModels("qwen3:8b", "deepseek-r1:1.5b", "qwen3:8b")
	models, err := s.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Model{
		{Name: "qwen3", ParameterSize: "8b"},
		{Name: "deepseek-r1", ParameterSize: "1.5b"},
	}, models)

	mock.SetModels("qwen3:14b")
	models, err = s.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Model{
		{Name: "qwen3", ParameterSize: "8b"},
		{Name: "deepseek-r1", ParameterSize: "1.5b"},
		{Name: "qwen3", ParameterSize: "14b"},
	}, models)
	assert.Equal(t, models, s.KnownModels())
}

func TestParseModel(t *testing.T) {
	assert.Equal(t, Model{Name: "qwen3", ParameterSize: "8b"}, ParseModel("qwen3:8b"))
	assert.Equal(t, Model{Name: "llama3"}, ParseModel("llama3"))
	assert.Equal(t, "llama3", ParseModel("llama3").String())
	assert.Equal(t, "qwen3:8b", ParseModel(" qwen3:8b ").String())
	assert.True(t, ParseModel("").IsZero())
}

func TestReset(t *testing.T) {
	mock := llm.NewMockStreamer(llm.MockScript{Chunks: []string{"x"}})
	s := New(mock, "lesson 0")
	require.NoError(t, s.Send(context.Background(), "q", testModel, nil, nil))

	require.NoError(t, s.Reset("lesson 1"))
	h := s.History()
	require.Len(t, h, 1)
	assert.Contains(t, h[0].Content, "lesson 1")
}
