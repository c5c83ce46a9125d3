package study

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/lessons"
	"github.com/abhisek/codetutor/internal/runner"
	"github.com/abhisek/codetutor/internal/store"
)

const toyManifest = `id: toy
name: Toy
extension: .toy
runtime: [toyrun]
versionArgs: [--version]
command: ["{runtime}", "{test}"]
bootstrap:
  - ["{runtime}", init]
`

func toyLessons(t *testing.T) *lessons.Store {
	t.Helper()
	s, err := lessons.NewStore(fstest.MapFS{
		"toy/language.yaml":           {Data: []byte(toyManifest)},
		"toy/base/base.toy":           {Data: []byte("base")},
		"toy/lessons/lesson0.toy":     {Data: []byte("zero")},
		"toy/lessons/lesson1.toy":     {Data: []byte("one")},
		"toy/tests/test0.toy":         {Data: []byte("test zero")},
		"toy/tests/test1.toy":         {Data: []byte("test one")},
		"toy/instructions/lesson0.md": {Data: []byte("do zero")},
		"toy/instructions/lesson1.md": {Data: []byte("do one")},
	})
	require.NoError(t, err)
	return s
}

// scriptedRunner answers version, bootstrap and test commands.
// A non-nil hold makes test commands signal entered and wait on it.
type scriptedRunner struct {
	mu         sync.Mutex
	calls      []runner.Command
	testResult runner.Result
	hold       chan struct{}
	entered    chan struct{}
}

func (r *scriptedRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)

	switch {
	case slices.Equal(cmd.Args, []string{"--version"}):
		r.mu.Unlock()
		return &runner.Result{Stdout: "toyrun 1.2.3"}, nil
	case slices.Equal(cmd.Args, []string{"init"}):
		r.mu.Unlock()
		return &runner.Result{}, nil
	}
	res := r.testResult
	hold, entered := r.hold, r.entered
	r.mu.Unlock()

	if hold != nil {
		close(entered)
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &res, nil
}

func (r *scriptedRunner) setTestResult(res runner.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testResult = res
}

type fakeHost struct {
	mu sync.Mutex

	dir     string
	pick    string
	confirm bool

	openedFolders []string
	openedFiles   []string
	closedFolder  bool
	closedEditors bool
	results       []evaluate.Outcome
	errors        []string
	terminal      []runner.Command
}

func (h *fakeHost) QuickPick(_ context.Context, _ string, options []string) (string, error) {
	if h.pick == "" {
		return "", ErrCancelled
	}
	if !slices.Contains(options, h.pick) {
		return "", fmt.Errorf("%q not offered", h.pick)
	}
	return h.pick, nil
}

func (h *fakeHost) Confirm(context.Context, string) (bool, error) { return h.confirm, nil }

func (h *fakeHost) InputDirectory(context.Context, string) (string, error) {
	if h.dir == "" {
		return "", ErrCancelled
	}
	return h.dir, nil
}

func (h *fakeHost) Info(string) {}

func (h *fakeHost) Error(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
}

func (h *fakeHost) OpenFolder(_ context.Context, dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openedFolders = append(h.openedFolders, dir)
	return nil
}

func (h *fakeHost) CloseFolder(context.Context) error {
	h.closedFolder = true
	return nil
}

func (h *fakeHost) OpenFile(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openedFiles = append(h.openedFiles, filepath.Base(path))
	return nil
}

func (h *fakeHost) CloseEditors(context.Context) error {
	h.closedEditors = true
	return nil
}

func (h *fakeHost) ShowResult(_ context.Context, _ int, o evaluate.Outcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, o)
	return nil
}

func (h *fakeHost) RunInTerminal(_ context.Context, cmd runner.Command) error {
	h.terminal = append(h.terminal, cmd)
	return nil
}

func identityLookup(name string) (string, error) { return name, nil }

type fixture struct {
	session *Session
	host    *fakeHost
	runner  *scriptedRunner
	db      *store.Store
	reloads int
	lessons *lessons.Store
	eval    *evaluate.Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(fmt.Sprintf("file:%s?cache=shared", filepath.Join(t.TempDir(), "state.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		host:    &fakeHost{confirm: true},
		runner:  &scriptedRunner{},
		db:      db,
		lessons: toyLessons(t),
	}
	reg := evaluate.NewRegistry()
	reg.Register("toy", evaluate.PythonClassifier{})
	f.eval = evaluate.New(f.lessons, f.runner, reg, evaluate.Config{Lookup: identityLookup})

	f.session = New(Deps{
		State:        db.StateRepo(),
		Events:       db.EventRepo(),
		Lessons:      f.lessons,
		Evaluator:    f.eval,
		Runner:       f.runner,
		Host:         f.host,
		Lookup:       identityLookup,
		BeforeReload: func() { f.reloads++ },
	})
	return f
}

func (f *fixture) start(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := f.session.Start(context.Background(), dir, "toy")
	require.NoError(t, err)
	return dir
}

func (f *fixture) state(t *testing.T) store.SessionState {
	t.Helper()
	st, err := f.db.StateRepo().Load(context.Background())
	require.NoError(t, err)
	return st
}

func (f *fixture) actions(t *testing.T) []string {
	t.Helper()
	events, err := f.db.EventRepo().QuerySessionEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	var out []string
	for i := len(events) - 1; i >= 0; i-- {
		out = append(out, events[i].Action)
	}
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestStart_StagesAndBootstraps(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	status, err := f.session.Start(context.Background(), dir, "toy")
	require.NoError(t, err)

	assert.Equal(t, PhaseOpenLoaded, status.Phase)
	assert.Equal(t, 0, status.CurrentLesson)
	assert.Equal(t, 2, status.LessonCount)
	assert.Equal(t, "lesson0.toy", status.LessonFile)

	assert.Equal(t, "base", readFile(t, filepath.Join(dir, "base.toy")))
	assert.Equal(t, "zero", readFile(t, filepath.Join(dir, "lesson0.toy")))
	left, err := filepath.Glob(filepath.Join(dir, ".codetutor_test_*"))
	require.NoError(t, err)
	assert.Empty(t, left)

	st := f.state(t)
	assert.True(t, st.IsOpen)
	assert.True(t, st.IsWorkspaceLoaded)
	assert.Equal(t, "toy", st.Language)
	assert.NotEmpty(t, st.SessionID)

	require.Len(t, f.runner.calls, 2)
	assert.Equal(t, []string{"init"}, f.runner.calls[1].Args)
	assert.Equal(t, st.WorkspacePath, f.runner.calls[1].Dir)

	assert.Equal(t, []string{st.WorkspacePath}, f.host.openedFolders)
	assert.Equal(t, []string{"base.toy", "lesson0.toy"}, f.host.openedFiles)
	assert.Equal(t, []string{"start"}, f.actions(t))
}

func TestStart_AsksForMissingInputs(t *testing.T) {
	f := newFixture(t)
	f.host.dir = filepath.Join(t.TempDir(), "new")
	f.host.pick = "toy"

	_, err := f.session.Start(context.Background(), "", "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.host.dir, "lesson0.toy"))
}

func TestStart_RejectsWhenOpen(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	_, err := f.session.Start(context.Background(), t.TempDir(), "toy")
	require.ErrorIs(t, err, ErrSessionOpen)
	assert.Equal(t, KindUserPrecondition, Kind(err))
}

func TestStart_NonEmptyWorkspace(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		f := newFixture(t)
		f.host.confirm = false
		dir := t.TempDir()
		keep := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(keep, []byte("mine"), 0o644))

		_, err := f.session.Start(context.Background(), dir, "toy")
		require.ErrorIs(t, err, ErrCancelled)
		assert.FileExists(t, keep)
		assert.False(t, f.state(t).IsOpen)
	})

	t.Run("confirmed", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()
		stale := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(stale, []byte("mine"), 0o644))

		_, err := f.session.Start(context.Background(), dir, "toy")
		require.NoError(t, err)
		assert.NoFileExists(t, stale)
		assert.FileExists(t, filepath.Join(dir, "lesson0.toy"))
	})
}

func TestStart_MissingRuntime(t *testing.T) {
	f := newFixture(t)
	f.session.deps.Lookup = func(name string) (string, error) {
		return "", &runner.ErrNotFound{Name: name, Err: errors.New("not in PATH")}
	}

	_, err := f.session.Start(context.Background(), t.TempDir(), "toy")

	var envErr *EnvironmentMissingError
	require.ErrorAs(t, err, &envErr)
	assert.Contains(t, envErr.Hint, "codetutor setup")
	assert.Equal(t, KindEnvironmentMissing, Kind(err))
	assert.False(t, f.state(t).IsOpen)
}

func TestSubmitAndProceed(t *testing.T) {
	f := newFixture(t)
	dir := f.start(t)
	ctx := context.Background()

	_, err := f.session.Proceed(ctx)
	require.ErrorIs(t, err, ErrNotPassed)

	f.runner.setTestResult(runner.Result{Stdout: "OK.\n"})
	res, err := f.session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, evaluate.Pass, res.Status)
	require.Len(t, f.host.results, 1)
	assert.Equal(t, evaluate.Pass, f.host.results[0].Status)
	assert.Equal(t, 0, f.state(t).CurrentLesson, "submit alone does not advance")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.toy"), []byte("edited"), 0o644))

	status, err := f.session.Proceed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentLesson)
	assert.Equal(t, 1, f.state(t).CurrentLesson)
	assert.Equal(t, "one", readFile(t, filepath.Join(dir, "lesson1.toy")))
	assert.Equal(t, "edited", readFile(t, filepath.Join(dir, "base.toy")))
	assert.Contains(t, f.host.openedFiles, "lesson1.toy")

	subs, err := f.db.EventRepo().QuerySubmissions(ctx, store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "pass", subs[0].Status)
	assert.Equal(t, []string{"start", "advance"}, f.actions(t))
}

func TestSubmit_FailDoesNotUnlockProceed(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	f.runner.setTestResult(runner.Result{
		Stdout: "Failed.\n",
		Stderr: "AssertionError: Expected 'hi' instead of ''",
		Err:    errors.New("exit status 1"),
	})
	res, err := f.session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, evaluate.Fail, res.Status)
	assert.Equal(t, "hi", res.ExpectedOutput)

	_, err = f.session.Proceed(ctx)
	require.ErrorIs(t, err, ErrNotPassed)
}

func TestProceed_LastLesson(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()
	f.runner.setTestResult(runner.Result{Stdout: "OK."})

	_, err := f.session.Submit(ctx)
	require.NoError(t, err)
	_, err = f.session.Proceed(ctx)
	require.NoError(t, err)

	_, err = f.session.Submit(ctx)
	require.NoError(t, err)
	_, err = f.session.Proceed(ctx)
	require.ErrorIs(t, err, ErrLastLesson)

	st := f.state(t)
	assert.True(t, st.IsOpen)
	assert.Equal(t, 1, st.CurrentLesson)
}

func TestSubmit_MismatchResetsSession(t *testing.T) {
	f := newFixture(t)
	dir := f.start(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lesson3.toy"), []byte("x"), 0o644))

	_, err := f.session.Submit(context.Background())

	var inc *InconsistentStateError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, KindFixtureInconsistent, Kind(err))
	assert.False(t, f.state(t).IsOpen)
	assert.Len(t, f.host.errors, 1)
	assert.FileExists(t, filepath.Join(dir, "lesson3.toy"), "learner files are kept")
	assert.Equal(t, []string{"start", "reset"}, f.actions(t))
}

func TestSubmit_MissingBaseKeepsSession(t *testing.T) {
	f := newFixture(t)
	dir := f.start(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "base.toy")))

	_, err := f.session.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUserPrecondition, Kind(err))
	assert.True(t, f.state(t).IsOpen)
}

func TestSubmit_NoSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Submit(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSession_RejectsConcurrentOperation(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.session.mu.Lock()
	_, err := f.session.Submit(context.Background())
	f.session.mu.Unlock()

	require.ErrorIs(t, err, ErrBusy)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("closed", func(t *testing.T) {
		f := newFixture(t)
		status, err := f.session.Load(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, PhaseClosed, status.Phase)
		assert.Empty(t, f.host.openedFolders)
	})

	t.Run("already in workspace", func(t *testing.T) {
		f := newFixture(t)
		dir := f.start(t)
		f.host.openedFolders = nil

		status, err := f.session.Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, PhaseOpenLoaded, status.Phase)
		assert.Empty(t, f.host.openedFolders)
		assert.Zero(t, f.reloads)
	})

	t.Run("switches workspace", func(t *testing.T) {
		f := newFixture(t)
		dir := f.start(t)
		f.host.openedFolders = nil

		status, err := f.session.Load(ctx, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, PhaseOpenLoaded, status.Phase)
		assert.Equal(t, 1, f.reloads)
		require.Len(t, f.host.openedFolders, 1)
		assert.True(t, samePath(dir, f.host.openedFolders[0]))
		assert.True(t, f.state(t).IsWorkspaceLoaded)
	})

	t.Run("workspace deleted", func(t *testing.T) {
		f := newFixture(t)
		dir := f.start(t)
		require.NoError(t, os.RemoveAll(dir))

		_, err := f.session.Load(ctx, "")
		var inc *InconsistentStateError
		require.ErrorAs(t, err, &inc)
		assert.False(t, f.state(t).IsOpen)
	})

	t.Run("lesson file removed", func(t *testing.T) {
		f := newFixture(t)
		dir := f.start(t)
		require.NoError(t, os.Remove(filepath.Join(dir, "lesson0.toy")))

		_, err := f.session.Load(ctx, dir)
		var inc *InconsistentStateError
		require.ErrorAs(t, err, &inc)
		assert.False(t, f.state(t).IsOpen)
	})
}

func TestEnd_KeepsFiles(t *testing.T) {
	f := newFixture(t)
	dir := f.start(t)

	require.NoError(t, f.session.End(context.Background()))

	assert.False(t, f.state(t).IsOpen)
	assert.FileExists(t, filepath.Join(dir, "lesson0.toy"))
	assert.True(t, f.host.closedFolder)
	assert.True(t, f.host.closedEditors)
	assert.Equal(t, []string{"start", "end"}, f.actions(t))

	require.ErrorIs(t, f.session.End(context.Background()), ErrNoSession)
}

func TestRestart(t *testing.T) {
	f := newFixture(t)
	dir := f.start(t)
	lesson := filepath.Join(dir, "lesson0.toy")
	require.NoError(t, os.WriteFile(lesson, []byte("my attempt"), 0o644))

	f.host.confirm = false
	require.ErrorIs(t, f.session.Restart(context.Background()), ErrCancelled)
	assert.Equal(t, "my attempt", readFile(t, lesson))

	f.host.confirm = true
	require.NoError(t, f.session.Restart(context.Background()))
	assert.Equal(t, "zero", readFile(t, lesson))
	assert.Equal(t, 0, f.state(t).CurrentLesson)
}

func TestInstructions(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Instructions(context.Background())
	require.ErrorIs(t, err, ErrNoSession)

	f.start(t)
	text, err := f.session.Instructions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "do zero", text)
}

func TestForceReset(t *testing.T) {
	f := newFixture(t)
	dir := f.start(t)

	require.NoError(t, f.session.ForceReset(context.Background()))
	assert.False(t, f.state(t).IsOpen)
	assert.FileExists(t, filepath.Join(dir, "lesson0.toy"))
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{ErrNoSession, KindUserPrecondition},
		{fmt.Errorf("wrapped: %w", evaluate.ErrBusy), KindUserPrecondition},
		{ErrModelHostNotConfigured, KindEnvironmentMissing},
		{&runner.ErrNotFound{Name: "python3"}, KindEnvironmentMissing},
		{lessons.ErrRuntimeTooOld, KindEnvironmentMissing},
		{&evaluate.LessonMismatchError{Persisted: 1, Derived: 2}, KindFixtureInconsistent},
		{lessons.ErrFixtureMissing, KindFixtureInconsistent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "%v", tt.err)
	}
}

func TestStatus_ReportsRunningEvaluation(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	ctx := context.Background()

	st, err := f.session.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Evaluating)

	f.runner.setTestResult(runner.Result{Stdout: "OK."})
	f.runner.mu.Lock()
	f.runner.hold = make(chan struct{})
	f.runner.entered = make(chan struct{})
	hold, entered := f.runner.hold, f.runner.entered
	f.runner.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Submit(ctx)
		done <- err
	}()
	<-entered

	st, err = f.session.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Evaluating)

	close(hold)
	require.NoError(t, <-done)
	st, err = f.session.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Evaluating)
}
