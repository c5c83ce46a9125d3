// Package study drives a learner's study session: starting it in a
// workspace, reconciling persisted state at startup, submitting lessons,
// advancing, restarting and ending.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/lessons"
	"github.com/abhisek/codetutor/internal/runner"
	"github.com/abhisek/codetutor/internal/store"
	"github.com/abhisek/codetutor/internal/workspace"
)

// Phase is the session's position in its lifecycle.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpenUnloaded
	PhaseOpenLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseOpenUnloaded:
		return "open (workspace not loaded)"
	case PhaseOpenLoaded:
		return "open"
	default:
		return "closed"
	}
}

// Status is a snapshot of the session.
type Status struct {
	Phase Phase
	store.SessionState
	LessonCount int
	LessonFile  string

	// Evaluating is set while a submission is being checked.
	Evaluating bool
}

// Deps are the collaborators of a Session.
type Deps struct {
	State     store.StateRepo
	Events    store.EventRepo
	Lessons   *lessons.Store
	Evaluator *evaluate.Evaluator
	Runner    runner.Runner
	Host      Host

	// Lookup resolves language runtimes. Defaults to runner.LookPath.
	Lookup lessons.LookupFunc

	// BeforeReload runs before the host switches to another workspace,
	// so registrations tied to the current one can be released.
	BeforeReload func()
}

// Session is the study session state machine. Mutating operations are
// serialized; one arriving while another runs fails with ErrBusy.
type Session struct {
	deps Deps

	mu sync.Mutex

	// passed is the lesson whose last submission passed, or -1.
	passed int
}

// New creates a Session.
func New(deps Deps) *Session {
	if deps.Lookup == nil {
		deps.Lookup = runner.LookPath
	}
	if deps.BeforeReload == nil {
		deps.BeforeReload = func() {}
	}
	return &Session{deps: deps, passed: -1}
}

func (s *Session) lock() error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	return nil
}

// Start opens a session in dir for language. An empty dir asks the host
// for one; an empty language is picked from the available ones. A
// non-empty dir is cleared only after the learner confirms.
func (s *Session) Start(ctx context.Context, dir, language string) (*Status, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	st, err := s.deps.State.Load(ctx)
	if err != nil {
		return nil, err
	}
	if st.IsOpen {
		return nil, ErrSessionOpen
	}

	if dir == "" {
		if dir, err = s.deps.Host.InputDirectory(ctx, "Choose a folder for your lessons"); err != nil {
			return nil, err
		}
	}
	dir, err = workspace.Prepare(dir)
	if err != nil {
		return nil, err
	}

	empty, err := workspace.IsEmpty(dir)
	if err != nil {
		return nil, err
	}
	if !empty {
		ok, err := s.deps.Host.Confirm(ctx, fmt.Sprintf("%s is not empty. Delete everything in it? This cannot be undone.", dir))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrCancelled
		}
		if err := workspace.Clear(dir); err != nil {
			return nil, err
		}
	}

	if language == "" {
		if language, err = s.deps.Host.QuickPick(ctx, "Choose a language", s.deps.Lessons.Languages()); err != nil {
			return nil, err
		}
	}
	lang, err := s.deps.Lessons.Language(language)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Lessons.StageLessonFiles(lang.ID, 0, dir, true); err != nil {
		return nil, err
	}
	if err := s.bootstrap(ctx, lang, dir); err != nil {
		return nil, err
	}

	st = store.SessionState{
		SessionID:         uuid.NewString(),
		IsOpen:            true,
		WorkspacePath:     dir,
		Language:          lang.ID,
		CurrentLesson:     0,
		IsWorkspaceLoaded: true,
	}
	if err := s.deps.State.Save(ctx, st); err != nil {
		return nil, err
	}
	s.passed = -1
	s.record(ctx, st, "start", "")
	slog.Info("study session started", "session_id", st.SessionID, "workspace", dir, "language", lang.ID)

	if err := s.deps.Host.OpenFolder(ctx, dir); err != nil {
		return nil, err
	}
	for _, f := range []string{lang.BaseFile(), lang.LessonFile(0)} {
		if err := s.deps.Host.OpenFile(ctx, filepath.Join(dir, f)); err != nil {
			slog.Warn("failed to open file", "file", f, "error", err)
		}
	}
	return s.status(ctx, st)
}

// bootstrap checks the language runtime and prepares the workspace
// environment, e.g. a virtualenv.
func (s *Session) bootstrap(ctx context.Context, lang *lessons.Language, dir string) error {
	runtimePath, err := lang.ResolveRuntime(s.deps.Lookup)
	if err != nil {
		return &EnvironmentMissingError{
			What: lang.Name + " runtime",
			Hint: fmt.Sprintf("install one of %v and run `codetutor setup`", lang.Runtime),
			Err:  err,
		}
	}

	version, err := lang.CheckRuntime(ctx, s.deps.Runner, runtimePath)
	if err != nil {
		return &EnvironmentMissingError{What: lang.Name + " runtime", Hint: "upgrade it and try again", Err: err}
	}
	slog.Debug("runtime found", "language", lang.ID, "path", runtimePath, "version", version)

	for _, tmpl := range lang.Bootstrap {
		argv := lessons.Expand(tmpl, runtimePath, "")
		res, err := s.deps.Runner.Run(ctx, runner.Command{
			Name:  argv[0],
			Args:  argv[1:],
			Dir:   dir,
			Env:   lang.Env,
			Image: lang.Image,
		})
		if err != nil {
			return err
		}
		if res.Err != nil {
			return fmt.Errorf("prepare %s environment (%s): %w: %s", lang.Name, argv[0], res.Err, res.Stderr)
		}
	}
	return nil
}

// Load reconciles persisted state with the workspace at startup. If the
// session is open but activeFolder is elsewhere, the host is switched to
// the workspace. Inconsistencies reset the session and return an
// *InconsistentStateError.
func (s *Session) Load(ctx context.Context, activeFolder string) (*Status, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	st, err := s.deps.State.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !st.IsOpen {
		return s.status(ctx, st)
	}
	if err := s.reconcile(ctx, st); err != nil {
		return nil, err
	}

	if !samePath(activeFolder, st.WorkspacePath) {
		if err := s.deps.State.SetWorkspaceLoaded(ctx, false); err != nil {
			return nil, err
		}
		s.deps.BeforeReload()
		if err := s.deps.Host.OpenFolder(ctx, st.WorkspacePath); err != nil {
			return nil, err
		}
	}
	if !st.IsWorkspaceLoaded || !samePath(activeFolder, st.WorkspacePath) {
		if err := s.deps.State.SetWorkspaceLoaded(ctx, true); err != nil {
			return nil, err
		}
		st.IsWorkspaceLoaded = true
	}
	return s.status(ctx, st)
}

// reconcile verifies the workspace still matches the persisted state.
func (s *Session) reconcile(ctx context.Context, st store.SessionState) error {
	info, err := os.Stat(st.WorkspacePath)
	if err != nil {
		return s.hardReset(ctx, st, "workspace is missing or inaccessible", err)
	}
	if !info.IsDir() {
		return s.hardReset(ctx, st, "workspace is not a directory", nil)
	}

	lang, err := s.deps.Lessons.Language(st.Language)
	if err != nil {
		return s.hardReset(ctx, st, "unknown language", err)
	}

	derived, err := workspace.DeriveCurrentLesson(st.WorkspacePath, lang.Extension)
	if errors.Is(err, workspace.ErrNoLesson) {
		return s.hardReset(ctx, st, "workspace holds no lesson file", err)
	}
	if err != nil {
		return s.hardReset(ctx, st, "workspace cannot be scanned", err)
	}
	if derived != st.CurrentLesson {
		return s.hardReset(ctx, st,
			fmt.Sprintf("workspace holds lesson %d but lesson %d was recorded", derived, st.CurrentLesson), nil)
	}
	return nil
}

// hardReset closes the session after an inconsistency. Learner files are
// left untouched.
func (s *Session) hardReset(ctx context.Context, st store.SessionState, reason string, cause error) error {
	slog.Error("resetting inconsistent study session",
		"session_id", st.SessionID,
		"workspace", st.WorkspacePath,
		"language", st.Language,
		"lesson", st.CurrentLesson,
		"reason", reason,
		"error", cause,
	)
	if err := s.deps.State.Reset(ctx); err != nil {
		return fmt.Errorf("reset session after %s: %w", reason, err)
	}
	s.passed = -1
	s.record(ctx, st, "reset", reason)

	e := &InconsistentStateError{Reason: reason, Err: cause}
	s.deps.Host.Error(e.Error())
	return e
}

// Submit evaluates the current lesson and shows the outcome. It does not
// advance; call Proceed after a pass.
func (s *Session) Submit(ctx context.Context) (*evaluate.Result, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	st, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.deps.Evaluator.Evaluate(ctx, evaluate.Submission{
		Workspace: st.WorkspacePath,
		Language:  st.Language,
		Lesson:    st.CurrentLesson,
	})
	if err != nil {
		var (
			mismatch    *evaluate.LessonMismatchError
			unreachable *evaluate.WorkspaceUnreachableError
		)
		switch {
		case errors.As(err, &mismatch):
			return nil, s.hardReset(ctx, st, "lesson number mismatch", err)
		case errors.As(err, &unreachable):
			return nil, s.hardReset(ctx, st, "workspace is missing or inaccessible", err)
		case errors.Is(err, lessons.ErrFixtureMissing):
			return nil, s.hardReset(ctx, st, "lesson fixture is missing", err)
		}
		return nil, err
	}

	if res.Status == evaluate.Pass {
		s.passed = st.CurrentLesson
	}
	if s.deps.Events != nil {
		if err := s.deps.Events.AppendSubmission(ctx, store.SubmissionEventData{
			SessionID:      st.SessionID,
			Language:       st.Language,
			Lesson:         st.CurrentLesson,
			Status:         string(res.Status),
			ExpectedOutput: res.ExpectedOutput,
			GotInstead:     res.GotInstead,
			Errors:         res.Errors,
			DurationMs:     res.Duration.Milliseconds(),
		}); err != nil {
			slog.Warn("failed to record submission", "error", err)
		}
	}

	if err := s.deps.Host.ShowResult(ctx, st.CurrentLesson, res.Outcome); err != nil {
		slog.Warn("failed to show result", "error", err)
	}
	return res, nil
}

// Proceed advances to the next lesson after the current one has passed.
// The next lesson file is staged without touching base. Advancing past
// the last lesson fails with ErrLastLesson and leaves state unchanged.
func (s *Session) Proceed(ctx context.Context) (*Status, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	st, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	if s.passed != st.CurrentLesson {
		return nil, ErrNotPassed
	}

	count, err := s.deps.Lessons.MaxLessons(st.Language)
	if err != nil {
		return nil, err
	}
	next := st.CurrentLesson + 1
	if next >= count {
		return nil, ErrLastLesson
	}

	if err := s.deps.Lessons.StageLessonFiles(st.Language, next, st.WorkspacePath, false); err != nil {
		return nil, err
	}
	if err := s.deps.State.SetCurrentLesson(ctx, next); err != nil {
		return nil, err
	}
	st.CurrentLesson = next
	s.passed = -1
	s.record(ctx, st, "advance", "")
	slog.Info("advanced to next lesson", "session_id", st.SessionID, "lesson", next)

	lang, err := s.deps.Lessons.Language(st.Language)
	if err == nil {
		if err := s.deps.Host.OpenFile(ctx, filepath.Join(st.WorkspacePath, lang.LessonFile(next))); err != nil {
			slog.Warn("failed to open lesson file", "error", err)
		}
	}
	return s.status(ctx, st)
}

// End closes the session. Workspace files are kept.
func (s *Session) End(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	st, err := s.open(ctx)
	if err != nil {
		return err
	}
	if err := s.deps.State.Reset(ctx); err != nil {
		return err
	}
	s.passed = -1
	s.record(ctx, st, "end", "")
	slog.Info("study session ended", "session_id", st.SessionID)

	if err := s.deps.Host.CloseEditors(ctx); err != nil {
		slog.Warn("failed to close editors", "error", err)
	}
	return s.deps.Host.CloseFolder(ctx)
}

// Restart puts the current lesson file back to its original content
// after the learner confirms. The lesson number and base are untouched.
func (s *Session) Restart(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	st, err := s.open(ctx)
	if err != nil {
		return err
	}
	lang, err := s.deps.Lessons.Language(st.Language)
	if err != nil {
		return err
	}

	ok, err := s.deps.Host.Confirm(ctx,
		fmt.Sprintf("Restart lesson %d? Your changes to %s will be lost.", st.CurrentLesson, lang.LessonFile(st.CurrentLesson)))
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}

	if err := s.deps.Lessons.RestoreLesson(st.Language, st.CurrentLesson, st.WorkspacePath); err != nil {
		return err
	}
	if s.passed == st.CurrentLesson {
		s.passed = -1
	}
	s.record(ctx, st, "restart", "")
	return s.deps.Host.OpenFile(ctx, filepath.Join(st.WorkspacePath, lang.LessonFile(st.CurrentLesson)))
}

// ForceReset closes any session without touching the workspace.
func (s *Session) ForceReset(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	st, err := s.deps.State.Load(ctx)
	if err != nil {
		return err
	}
	if err := s.deps.State.Reset(ctx); err != nil {
		return err
	}
	s.passed = -1
	if st.IsOpen {
		s.record(ctx, st, "reset", "requested")
	}
	return nil
}

// Status returns a snapshot without reconciling.
func (s *Session) Status(ctx context.Context) (*Status, error) {
	st, err := s.deps.State.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.status(ctx, st)
}

// Instructions returns the current lesson's instructions.
func (s *Session) Instructions(ctx context.Context) (string, error) {
	st, err := s.open(ctx)
	if err != nil {
		return "", err
	}
	return s.deps.Lessons.Instructions(st.Language, st.CurrentLesson)
}

func (s *Session) open(ctx context.Context) (store.SessionState, error) {
	st, err := s.deps.State.Load(ctx)
	if err != nil {
		return st, err
	}
	if !st.IsOpen {
		return st, ErrNoSession
	}
	return st, nil
}

func (s *Session) status(_ context.Context, st store.SessionState) (*Status, error) {
	out := &Status{SessionState: st}
	if s.deps.Evaluator != nil {
		out.Evaluating = s.deps.Evaluator.Busy()
	}
	if !st.IsOpen {
		return out, nil
	}

	out.Phase = PhaseOpenUnloaded
	if st.IsWorkspaceLoaded {
		out.Phase = PhaseOpenLoaded
	}
	if lang, err := s.deps.Lessons.Language(st.Language); err == nil {
		out.LessonFile = lang.LessonFile(st.CurrentLesson)
	}
	if n, err := s.deps.Lessons.MaxLessons(st.Language); err == nil {
		out.LessonCount = n
	}
	return out, nil
}

func (s *Session) record(ctx context.Context, st store.SessionState, action, detail string) {
	if s.deps.Events == nil {
		return
	}
	err := s.deps.Events.AppendSessionEvent(ctx, store.SessionEventData{
		SessionID:     st.SessionID,
		Action:        action,
		WorkspacePath: st.WorkspacePath,
		Language:      st.Language,
		Lesson:        st.CurrentLesson,
		Detail:        detail,
	})
	if err != nil {
		slog.Warn("failed to record session event", "action", action, "error", err)
	}
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	ca, errA := filepath.Abs(a)
	cb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if ra, err := filepath.EvalSymlinks(ca); err == nil {
		ca = ra
	}
	if rb, err := filepath.EvalSymlinks(cb); err == nil {
		cb = rb
	}
	return ca == cb
}
