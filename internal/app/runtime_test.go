package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codetutor/internal/config"
	"github.com/abhisek/codetutor/internal/host"
	"github.com/abhisek/codetutor/internal/llm"
	"github.com/abhisek/codetutor/internal/study"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := &config.Config{
		Sandbox:     config.SandboxLocal,
		EvalTimeout: 5 * time.Second,
		ServeAddr:   "127.0.0.1:0",
		LLM:         llm.Config{Provider: "mock"},
	}
	var out, errOut bytes.Buffer
	term := host.NewTerminalIO(strings.NewReader(""), &out, &errOut, false)

	rt, err := New(cfg, Options{DBPath: filepath.Join(t.TempDir(), "test.db"), Host: term})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestNew_WiresComponents(t *testing.T) {
	rt := newTestRuntime(t)

	assert.NotNil(t, rt.Lessons)
	assert.NotNil(t, rt.Runner)
	assert.NotNil(t, rt.Evaluator)
	assert.NotNil(t, rt.Study)
	assert.NotNil(t, rt.ModelHost)
	assert.NotEmpty(t, rt.Lessons.Languages())

	st, err := rt.Study.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, study.PhaseClosed, st.Phase)
}

func TestDispose_ReverseOrder(t *testing.T) {
	rt := newTestRuntime(t)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		rt.Register(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	require.NoError(t, rt.Dispose())
	assert.Equal(t, []string{"third", "second", "first"}, order)

	order = nil
	require.NoError(t, rt.Dispose())
	assert.Empty(t, order, "registrations are released once")
}

func TestDispose_JoinsErrors(t *testing.T) {
	rt := newTestRuntime(t)
	boom := errors.New("boom")

	ran := false
	rt.Register("ok", func() error {
		ran = true
		return nil
	})
	rt.Register("broken", func() error { return boom })

	err := rt.Dispose()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "dispose broken")
	assert.True(t, ran, "a failing registration does not stop the rest")
}

func TestClose_Idempotent(t *testing.T) {
	rt := newTestRuntime(t)
	calls := 0
	rt.Register("counter", func() error {
		calls++
		return nil
	})

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
	assert.Equal(t, 1, calls)
}

func TestStreamer_Cached(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	a, err := rt.Streamer(ctx)
	require.NoError(t, err)
	b, err := rt.Streamer(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, rt.Dispose())
	c, err := rt.Streamer(ctx)
	require.NoError(t, err)
	assert.NotSame(t, a, c, "dispose drops the client")
}

func TestChat_WithoutSession(t *testing.T) {
	rt := newTestRuntime(t)

	session, err := rt.Chat(context.Background())
	require.NoError(t, err)
	history := session.History()
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Content, "no instructions")
}

func TestDefaultModel(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Config.LLM = llm.DefaultConfig()

	m := rt.DefaultModel()
	assert.Equal(t, "deepseek-r1", m.Name)
	assert.Equal(t, "1.5b", m.ParameterSize)

	rt.Config.LLM.Provider = "openai"
	assert.Equal(t, "gpt-4o-mini", rt.DefaultModel().Name)
}

func TestWebServer(t *testing.T) {
	rt := newTestRuntime(t)
	srv, err := rt.WebServer(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, srv.Router())
}
