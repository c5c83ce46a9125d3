package runner

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Local runs commands directly on the host.
type Local struct {
	// Shell is the alternate shell used when a direct spawn is denied.
	// Defaults to sh on unix and cmd /C on windows.
	Shell []string
}

// NewLocal creates a host runner with the platform's alternate shell.
func NewLocal() *Local {
	return &Local{Shell: defaultShell()}
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"sh"}
}

func (l *Local) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, ErrEmptyCommand
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	res := l.run(ctx, cmd.Name, cmd.Args, cmd)
	if errors.Is(res.Err, fs.ErrPermission) && len(l.Shell) > 0 {
		slog.Debug("spawn denied, retrying under shell", "cmd", cmd.String(), "shell", l.Shell[0])
		name, args := l.shellInvocation(cmd)
		res = l.run(ctx, name, args, cmd)
	}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && cmd.Timeout > 0 {
			res.Err = err
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// shellInvocation hands the command to the alternate shell. A plain file
// is read by the shell as a script; anything else goes through -c.
func (l *Local) shellInvocation(cmd Command) (string, []string) {
	shell := l.Shell[0]
	args := append([]string{}, l.Shell[1:]...)
	info, err := os.Stat(cmd.Name)
	if runtime.GOOS == "windows" || (err == nil && info.Mode().IsRegular()) {
		return shell, append(append(args, cmd.Name), cmd.Args...)
	}
	return shell, append(args, "-c", cmd.String())
}

func (l *Local) run(ctx context.Context, name string, args []string, cmd Command) *Result {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   normalizeNewlines(stdout.String()),
		Stderr:   normalizeNewlines(stderr.String()),
		Err:      err,
		Duration: time.Since(start),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		res.ExitCode = -1
	}
	return res
}

// normalizeNewlines converts CRLF output from windows interpreters.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
