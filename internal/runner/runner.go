// Package runner executes external processes for test runs, environment
// bootstrap and model host commands.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Command describes a single process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Timeout time.Duration

	// Image selects the container image for sandboxed runners.
	Image string
}

// String renders the command line for logs and terminal echo.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the captured outcome of a process run.
// A non-zero exit is reported through Err, not as a Run error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err is the spawn or exit error, nil when the process exited 0.
	Err      error
	Duration time.Duration
}

// Runner runs a command to completion and captures its output.
// Run returns an error only when the runner itself cannot operate
// (cancelled context, unavailable sandbox); process failures land in
// Result.Err.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ErrEmptyCommand is returned for a Command without a Name.
var ErrEmptyCommand = errors.New("runner: empty command")

// ErrNotFound indicates an executable could not be located.
type ErrNotFound struct {
	Name string
	Err  error
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found on this machine", e.Name)
}

func (e *ErrNotFound) Unwrap() error { return e.Err }

// LookPath locates an executable in PATH.
func LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", &ErrNotFound{Name: name, Err: err}
	}
	return p, nil
}
