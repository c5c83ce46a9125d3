// Package workspace inspects and prepares learner workspace directories.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNoLesson indicates no lesson<N> file exists in the workspace.
	ErrNoLesson = errors.New("no lesson file in workspace")

	// ErrMissingBase indicates the base file was removed from the workspace.
	ErrMissingBase = errors.New("base file missing from workspace")
)

// DeriveCurrentLesson scans dir for files named lesson<N><ext> and returns
// the largest N. Names with a non-numeric suffix are ignored.
func DeriveCurrentLesson(dir, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan workspace: %w", err)
	}

	current := -1
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		n, ok := lessonNumber(e.Name(), ext)
		if ok && n > current {
			current = n
		}
	}
	if current < 0 {
		return 0, ErrNoLesson
	}
	return current, nil
}

func lessonNumber(name, ext string) (int, bool) {
	stem, ok := strings.CutSuffix(name, ext)
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutPrefix(stem, "lesson")
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks that dir is reachable and holds the base file.
func Validate(dir, baseFile string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, baseFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingBase, baseFile)
		}
		return err
	}
	return nil
}

// IsEmpty reports whether dir has no entries. A missing dir counts as empty.
func IsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// Clear recursively deletes everything inside dir, keeping dir itself.
func Clear(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Prepare creates dir if needed and returns its absolute path.
func Prepare(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return abs, nil
}
