package study

import (
	"context"

	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/runner"
)

// Host is the learner-facing environment: prompts, notifications, the
// open workspace and a terminal. Prompts return ErrCancelled when the
// learner dismisses them.
type Host interface {
	QuickPick(ctx context.Context, title string, options []string) (string, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
	InputDirectory(ctx context.Context, prompt string) (string, error)

	Info(msg string)
	Error(msg string)

	// OpenFolder makes dir the active workspace.
	OpenFolder(ctx context.Context, dir string) error
	CloseFolder(ctx context.Context) error
	OpenFile(ctx context.Context, path string) error
	CloseEditors(ctx context.Context) error

	ShowResult(ctx context.Context, lesson int, outcome evaluate.Outcome) error

	// RunInTerminal runs an interactive command with the learner watching.
	RunInTerminal(ctx context.Context, cmd runner.Command) error
}
