package lessons

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/abhisek/codetutor/internal/runner"
)

// ErrRuntimeTooOld indicates the installed runtime is below MinVersion.
var ErrRuntimeTooOld = errors.New("runtime version too old")

// LookupFunc locates an executable, normally runner.LookPath.
type LookupFunc func(name string) (string, error)

// ResolveRuntime returns the first runtime candidate found by lookup.
func (l *Language) ResolveRuntime(lookup LookupFunc) (string, error) {
	var firstErr error
	for _, name := range l.Runtime {
		p, err := lookup(name)
		if err == nil {
			return p, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = &runner.ErrNotFound{Name: l.ID + " runtime"}
	}
	return "", firstErr
}

var versionPattern = regexp.MustCompile(`(\d+)(\.\d+)?(\.\d+)?`)

// ParseVersion extracts a semver string such as "v3.12.1" from the
// output of a --version invocation.
func ParseVersion(out string) (string, bool) {
	m := versionPattern.FindString(out)
	if m == "" {
		return "", false
	}
	v := "v" + m
	if !semver.IsValid(v) {
		return "", false
	}
	return semver.Canonical(v), true
}

// CheckRuntime runs the runtime's version command and compares it with
// MinVersion. An unparseable version is accepted.
func (l *Language) CheckRuntime(ctx context.Context, r runner.Runner, runtimePath string) (string, error) {
	res, err := r.Run(ctx, runner.Command{Name: runtimePath, Args: l.VersionArgs, Image: l.Image})
	if err != nil {
		return "", err
	}
	if res.Err != nil {
		return "", fmt.Errorf("%s %s: %w", runtimePath, strings.Join(l.VersionArgs, " "), res.Err)
	}

	// Older interpreters print the version on stderr.
	v, ok := ParseVersion(res.Stdout + " " + res.Stderr)
	if !ok || l.MinVersion == "" {
		return v, nil
	}
	if semver.Compare(v, l.MinVersion) < 0 {
		return v, fmt.Errorf("%w: %s %s found, %s or newer required", ErrRuntimeTooOld, l.Name, v, l.MinVersion)
	}
	return v, nil
}
