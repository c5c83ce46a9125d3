package study

import (
	"errors"
	"fmt"

	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/lessons"
	"github.com/abhisek/codetutor/internal/llm"
	"github.com/abhisek/codetutor/internal/runner"
	"github.com/abhisek/codetutor/internal/workspace"
)

var (
	// ErrSessionOpen is returned by Start while a session is open.
	ErrSessionOpen = errors.New("a study session is already open; run `codetutor end` first")

	// ErrNoSession is returned by operations that need an open session.
	ErrNoSession = errors.New("no study session is open; run `codetutor start` first")

	// ErrBusy is returned when another session operation is running.
	ErrBusy = errors.New("another session operation is in progress")

	// ErrLastLesson is returned when advancing past the final lesson.
	ErrLastLesson = errors.New("this is the last lesson")

	// ErrNotPassed is returned by Proceed before the lesson has passed.
	ErrNotPassed = errors.New("the current lesson has not passed yet; submit a passing solution first")

	// ErrCancelled is returned by a Host when the learner dismisses a prompt.
	ErrCancelled = errors.New("cancelled")

	// ErrModelHostNotConfigured is returned when no model host path is stored.
	ErrModelHostNotConfigured = errors.New("model host path is not set")
)

// EnvironmentMissingError reports a tool the learner must install or
// configure. Hint names the next step.
type EnvironmentMissingError struct {
	What string
	Hint string
	Err  error
}

func (e *EnvironmentMissingError) Error() string {
	msg := e.What + " is not available"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	return msg
}

func (e *EnvironmentMissingError) Unwrap() error { return e.Err }

// InconsistentStateError reports persisted state that disagrees with the
// workspace. The session has already been reset when this is returned.
type InconsistentStateError struct {
	Reason string
	Err    error
}

func (e *InconsistentStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("study session was reset: %s: %v", e.Reason, e.Err)
	}
	return "study session was reset: " + e.Reason
}

func (e *InconsistentStateError) Unwrap() error { return e.Err }

// ErrorKind classifies errors for presentation.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUserPrecondition
	KindEnvironmentMissing
	KindFixtureInconsistent
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindUserPrecondition:
		return "precondition"
	case KindEnvironmentMissing:
		return "environment"
	case KindFixtureInconsistent:
		return "inconsistent"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Kind maps an error returned by this package, or one of its
// collaborators, to an ErrorKind.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var (
		envErr      *EnvironmentMissingError
		incErr      *InconsistentStateError
		mismatch    *evaluate.LessonMismatchError
		unreachable *evaluate.WorkspaceUnreachableError
		notFound    *runner.ErrNotFound
		unavail     *llm.ErrProviderUnavailable
		noModel     *llm.ErrModelNotFound
	)
	switch {
	case errors.Is(err, ErrSessionOpen), errors.Is(err, ErrNoSession),
		errors.Is(err, ErrBusy), errors.Is(err, evaluate.ErrBusy),
		errors.Is(err, ErrLastLesson), errors.Is(err, ErrNotPassed),
		errors.Is(err, ErrCancelled), errors.Is(err, workspace.ErrMissingBase):
		return KindUserPrecondition
	case errors.As(err, &envErr), errors.As(err, &notFound),
		errors.As(err, &unavail), errors.As(err, &noModel),
		errors.Is(err, ErrModelHostNotConfigured), errors.Is(err, lessons.ErrRuntimeTooOld):
		return KindEnvironmentMissing
	case errors.As(err, &incErr), errors.As(err, &mismatch),
		errors.As(err, &unreachable), errors.Is(err, lessons.ErrFixtureMissing):
		return KindFixtureInconsistent
	}
	return KindUnknown
}
