// Package host implements the learner-facing environment for the
// command line: Bubble Tea prompts, styled messages and an attached
// terminal for interactive commands.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/mattn/go-isatty"

	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/runner"
	"github.com/abhisek/codetutor/internal/study"
	"github.com/abhisek/codetutor/internal/ui/components"
	"github.com/abhisek/codetutor/internal/ui/layout"
	"github.com/abhisek/codetutor/internal/ui/theme"
)

// ErrNotInteractive is returned by prompts when stdin is not a terminal.
var ErrNotInteractive = errors.New("a prompt is needed but the input is not a terminal; pass the value as a flag")

// Terminal is a study.Host on a terminal.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// Interactive enables Bubble Tea prompts.
	Interactive bool

	// AssumeYes answers every confirmation with yes.
	AssumeYes bool

	// Editor, when set, is launched for OpenFile.
	Editor string

	// Width of rendered cards; 0 uses layout.DefaultWidth.
	Width int
}

var _ study.Host = (*Terminal)(nil)

// NewTerminal creates a host on the process's standard streams.
func NewTerminal() *Terminal {
	return &Terminal{
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		Interactive: isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// NewTerminalIO creates a host on the given streams.
func NewTerminalIO(in io.Reader, out, errOut io.Writer, interactive bool) *Terminal {
	return &Terminal{in: in, out: out, errOut: errOut, Interactive: interactive}
}

func (t *Terminal) width() int {
	if t.Width > 0 {
		return t.Width
	}
	return layout.DefaultWidth
}

func (t *Terminal) QuickPick(ctx context.Context, title string, options []string) (string, error) {
	if len(options) == 1 {
		return options[0], nil
	}
	if !t.Interactive {
		return "", fmt.Errorf("%w (choices: %s)", ErrNotInteractive, strings.Join(options, ", "))
	}

	final, err := t.run(ctx, pickerModel{picker: components.NewPicker(title, options)})
	if err != nil {
		return "", err
	}
	choice, ok := final.(pickerModel).picker.Chosen()
	if !ok {
		return "", study.ErrCancelled
	}
	return choice, nil
}

func (t *Terminal) Confirm(ctx context.Context, prompt string) (bool, error) {
	if t.AssumeYes {
		return true, nil
	}
	if !t.Interactive {
		return false, fmt.Errorf("%w (use --yes to confirm)", ErrNotInteractive)
	}

	final, err := t.run(ctx, confirmModel{confirm: components.NewConfirm(prompt)})
	if err != nil {
		return false, err
	}
	c := final.(confirmModel).confirm
	if c.Cancelled() {
		return false, study.ErrCancelled
	}
	return c.Answer(), nil
}

func (t *Terminal) InputDirectory(ctx context.Context, prompt string) (string, error) {
	if !t.Interactive {
		return "", fmt.Errorf("%w (pass the folder as an argument)", ErrNotInteractive)
	}

	final, err := t.run(ctx, inputModel{input: components.NewPathInput(prompt, "~/codetutor")})
	if err != nil {
		return "", err
	}
	dir, ok := final.(inputModel).input.Value()
	if !ok {
		return "", study.ErrCancelled
	}
	return dir, nil
}

func (t *Terminal) Info(msg string) {
	fmt.Fprintln(t.out, theme.Body.Render(msg))
}

func (t *Terminal) Warn(msg string) {
	fmt.Fprintln(t.errOut, theme.Warn.Render("warning: ")+msg)
}

func (t *Terminal) Error(msg string) {
	fmt.Fprintln(t.errOut, theme.Failure.Render("error: ")+msg)
}

// OpenFolder cannot change the parent shell's directory, so it tells the
// learner where the workspace is.
func (t *Terminal) OpenFolder(_ context.Context, dir string) error {
	fmt.Fprintln(t.out, theme.Label.Render("Workspace ")+theme.Code.Render(dir))
	fmt.Fprintln(t.out, theme.Hint.Render("  cd "+shellQuote(dir)))
	return nil
}

func (t *Terminal) CloseFolder(context.Context) error {
	fmt.Fprintln(t.out, theme.Hint.Render("Study session closed. Your files were kept."))
	return nil
}

func (t *Terminal) OpenFile(ctx context.Context, path string) error {
	if t.Editor == "" || !t.Interactive {
		fmt.Fprintln(t.out, theme.Label.Render("Open ")+theme.Code.Render(path))
		return nil
	}
	fields := strings.Fields(t.Editor)
	return t.RunInTerminal(ctx, runner.Command{Name: fields[0], Args: append(fields[1:], path)})
}

func (t *Terminal) CloseEditors(context.Context) error { return nil }

func (t *Terminal) ShowResult(_ context.Context, lesson int, o evaluate.Outcome) error {
	_, err := fmt.Fprintln(t.out, components.ResultCard(lesson, o, t.width()))
	return err
}

// RunInTerminal runs cmd attached to the terminal so the learner can watch
// and interact with it.
func (t *Terminal) RunInTerminal(ctx context.Context, cmd runner.Command) error {
	if cmd.Name == "" {
		return runner.ErrEmptyCommand
	}
	fmt.Fprintln(t.out, theme.Hint.Render("$ "+cmd.String()))

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdin = t.in
	c.Stdout = t.out
	c.Stderr = t.errOut
	if err := c.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return &runner.ErrNotFound{Name: cmd.Name, Err: err}
		}
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return nil
}

func (t *Terminal) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("prompt: %w", err)
	}
	return final, nil
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"$`\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
