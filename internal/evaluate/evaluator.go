package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/abhisek/codetutor/internal/lessons"
	"github.com/abhisek/codetutor/internal/runner"
	"github.com/abhisek/codetutor/internal/workspace"
)

// Config holds evaluator settings.
type Config struct {
	// Timeout bounds a single test run.
	Timeout time.Duration

	// Lookup resolves the language runtime. Defaults to runner.LookPath.
	Lookup lessons.LookupFunc
}

// DefaultConfig returns sensible defaults for evaluation.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Lookup:  runner.LookPath,
	}
}

// Evaluator runs the Staged → Executed → Classified → Cleaned pipeline.
// Only one evaluation runs at a time; a concurrent call gets ErrBusy.
type Evaluator struct {
	lessons     *lessons.Store
	runner      runner.Runner
	classifiers *Registry
	cfg         Config

	busy atomic.Bool
}

// New creates an Evaluator.
func New(store *lessons.Store, r runner.Runner, classifiers *Registry, cfg Config) *Evaluator {
	if cfg.Lookup == nil {
		cfg.Lookup = runner.LookPath
	}
	if classifiers == nil {
		classifiers = NewRegistry()
	}
	return &Evaluator{lessons: store, runner: r, classifiers: classifiers, cfg: cfg}
}

// Evaluate checks the submission's workspace and runs the hidden test for
// its lesson. Pre-stage failures (unreachable workspace, lesson mismatch,
// missing fixture) are returned as errors; everything after staging is
// reported through the Outcome. The staged test file is always removed.
func (e *Evaluator) Evaluate(ctx context.Context, sub Submission) (res *Result, err error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	start := time.Now()
	lang, err := e.lessons.Language(sub.Language)
	if err != nil {
		return nil, err
	}

	testPath, err := e.stage(sub, lang)
	if err != nil {
		return nil, err
	}
	res = &Result{Lesson: sub.Lesson, Stage: StageStaged}

	defer func() {
		if rmErr := os.Remove(testPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Error("failed to remove staged test", "path", testPath, "error", rmErr)
		}
		if res != nil {
			res.Stage = StageCleaned
			res.Duration = time.Since(start)
		}
	}()

	out, err := e.execute(ctx, sub, lang, filepath.Base(testPath))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		res.Outcome = Outcome{Status: Error, Errors: err.Error()}
		return res, nil
	}
	res.Stage = StageExecuted

	res.Outcome = e.classifiers.Classify(lang.ID, out)
	res.Stage = StageClassified
	slog.Debug("submission classified",
		"language", lang.ID,
		"lesson", sub.Lesson,
		"status", res.Status,
		"exit_code", out.ExitCode,
	)
	return res, nil
}

// Busy reports whether an evaluation is in flight.
func (e *Evaluator) Busy() bool {
	return e.busy.Load()
}

func (e *Evaluator) stage(sub Submission, lang *lessons.Language) (string, error) {
	if _, err := os.Stat(sub.Workspace); err != nil {
		return "", &WorkspaceUnreachableError{Path: sub.Workspace, Err: err}
	}
	if err := workspace.Validate(sub.Workspace, lang.BaseFile()); err != nil {
		return "", err
	}

	derived, err := workspace.DeriveCurrentLesson(sub.Workspace, lang.Extension)
	if errors.Is(err, workspace.ErrNoLesson) {
		return "", &LessonMismatchError{Persisted: sub.Lesson, Derived: -1}
	}
	if err != nil {
		return "", &WorkspaceUnreachableError{Path: sub.Workspace, Err: err}
	}
	if derived != sub.Lesson {
		return "", &LessonMismatchError{Persisted: sub.Lesson, Derived: derived}
	}

	return e.lessons.StageTestFile(lang.ID, sub.Lesson, sub.Workspace)
}

func (e *Evaluator) execute(ctx context.Context, sub Submission, lang *lessons.Language, testFile string) (*runner.Result, error) {
	runtimePath, err := lang.ResolveRuntime(e.cfg.Lookup)
	if err != nil {
		return nil, fmt.Errorf("%w; run `codetutor setup` to check your environment", err)
	}

	argv := lessons.Expand(lang.Command, runtimePath, testFile)
	return e.runner.Run(ctx, runner.Command{
		Name:    argv[0],
		Args:    argv[1:],
		Dir:     sub.Workspace,
		Env:     lang.Env,
		Timeout: e.cfg.Timeout,
		Image:   lang.Image,
	})
}
