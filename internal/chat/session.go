// Package chat holds a tutoring conversation with a model host.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/abhisek/codetutor/internal/llm"
)

// ErrBusy is returned when a response is already streaming.
var ErrBusy = errors.New("a response is already being generated")

// ErrEmptyPrompt is returned for a blank user prompt.
var ErrEmptyPrompt = errors.New("prompt is empty")

// SystemPrompt builds the tutor persona seeded into every conversation.
func SystemPrompt(instructions string) string {
	if strings.TrimSpace(instructions) == "" {
		instructions = "no instructions"
	}
	return fmt.Sprintf(`You are a computer science teacher for the user. Don't tell the user the answer or full solution, but rather, provide hints and guide them towards the solution. Refuse to answer politely if the question is not related to programming and/or computer science.
Assist with the user's technical issues directly, using the information provided below. In addition, the user can run the following commands: 'codetutor restart' to reset their lesson to its initial state, 'codetutor submit' to submit their work, and 'codetutor end' to end their study session.
The user has been shown the following instructions:
%s`, instructions)
}

// Session is a multi-turn conversation. History holds one system message
// followed by alternating user and assistant turns. Only one response
// streams at a time; a concurrent request is rejected with ErrBusy.
type Session struct {
	backend llm.Streamer

	mu      sync.Mutex
	history []llm.Message
	models  []Model

	busy atomic.Bool
}

// New creates a Session seeded with the lesson instructions.
func New(backend llm.Streamer, instructions string) *Session {
	return &Session{
		backend: backend,
		history: []llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt(instructions)}},
	}
}

// Stream sends prompt with the full history and yields the visible text of
// the reply as it arrives. On completion the reply is appended to history.
// If ctx ends, the consumer stops early, or the backend fails, neither the
// prompt nor the partial reply is kept. Errors are yielded once, last.
func (s *Session) Stream(ctx context.Context, prompt string, model Model) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if strings.TrimSpace(prompt) == "" {
			yield("", ErrEmptyPrompt)
			return
		}
		if !s.busy.CompareAndSwap(false, true) {
			yield("", ErrBusy)
			return
		}
		defer s.busy.Store(false)

		s.mu.Lock()
		mark := len(s.history)
		s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: prompt})
		req := llm.Request{
			Model:    model.String(),
			Messages: append([]llm.Message(nil), s.history...),
		}
		s.mu.Unlock()

		committed := false
		defer func() {
			if !committed {
				s.truncate(mark)
			}
		}()

		var (
			filter ThinkFilter
			reply  strings.Builder
		)
		for chunk, err := range s.backend.Stream(llm.WithPurpose(ctx, "chat"), req) {
			if err != nil {
				yield("", err)
				return
			}
			text, ok := filter.Feed(chunk.Text)
			if !ok {
				continue
			}
			reply.WriteString(text)
			if !yield(text, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}

		s.mu.Lock()
		s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Content: reply.String()})
		s.mu.Unlock()
		committed = true
	}
}

// Send is a callback adapter over Stream. onToken receives each visible
// chunk; onComplete receives the full reply after it is committed.
func (s *Session) Send(ctx context.Context, prompt string, model Model, onToken func(string), onComplete func(string)) error {
	var full strings.Builder
	for text, err := range s.Stream(ctx, prompt, model) {
		if err != nil {
			return err
		}
		full.WriteString(text)
		if onToken != nil {
			onToken(text)
		}
	}
	if onComplete != nil {
		onComplete(full.String())
	}
	return nil
}

// Busy reports whether a response is streaming.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Reset starts a new conversation for different instructions.
func (s *Session) Reset(instructions string) error {
	if s.busy.Load() {
		return ErrBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt(instructions)}}
	return nil
}

// History returns a copy of the conversation.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}

// Models queries the host for installed models and merges them into the
// cached list. Entries are only ever added.
func (s *Session) Models(ctx context.Context) ([]Model, error) {
	ids, err := s.backend.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	found := make([]Model, 0, len(ids))
	for _, id := range ids {
		if m := ParseModel(id); !m.IsZero() {
			found = append(found, m)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = mergeModels(s.models, found)
	return append([]Model(nil), s.models...), nil
}

// KnownModels returns the cached model list without querying the host.
func (s *Session) KnownModels() []Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Model(nil), s.models...)
}

func (s *Session) truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) > n {
		s.history = s.history[:n]
	}
}
