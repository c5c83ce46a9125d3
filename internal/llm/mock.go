package llm

import (
	"context"
	"iter"
	"sync"
)

// MockScript is a canned streamed response for the MockStreamer.
// Chunks are yielded in order, then Err if set.
type MockScript struct {
	Chunks []string
	Err    error
}

// MockStreamer is a deterministic Streamer for testing.
// It plays scripts in FIFO order and records all requests.
type MockStreamer struct {
	mu      sync.Mutex
	scripts []MockScript
	models  []string
	Calls   []Request
}

// NewMockStreamer creates a MockStreamer with the given scripts.
func NewMockStreamer(scripts ...MockScript) *MockStreamer {
	return &MockStreamer{scripts: scripts}
}

// Stream plays the next script or yields ErrProviderUnavailable if the
// queue is empty. The context is checked before every chunk.
func (m *MockStreamer) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	m.mu.Lock()
	req.Messages = append([]Message(nil), req.Messages...)
	m.Calls = append(m.Calls, req)
	var script *MockScript
	if len(m.scripts) > 0 {
		script = &m.scripts[0]
		m.scripts = m.scripts[1:]
	}
	m.mu.Unlock()

	return func(yield func(Chunk, error) bool) {
		if script == nil {
			yield(Chunk{}, &ErrProviderUnavailable{})
			return
		}
		for _, text := range script.Chunks {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}
			if !yield(Chunk{Text: text}, nil) {
				return
			}
		}
		if script.Err != nil {
			yield(Chunk{}, script.Err)
		}
	}
}

// ListModels returns the models set with SetModels.
func (m *MockStreamer) ListModels(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.models...), nil
}

// ModelID returns "mock".
func (m *MockStreamer) ModelID() string {
	return "mock"
}

// AddScript appends a canned response to the queue.
func (m *MockStreamer) AddScript(s MockScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, s)
}

// SetModels replaces the installed model list.
func (m *MockStreamer) SetModels(models ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = models
}

// CallCount returns the number of Stream calls made.
func (m *MockStreamer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
