// Package evaluate runs a lesson's hidden test against a learner workspace
// and classifies the outcome.
package evaluate

import (
	"errors"
	"fmt"
	"time"
)

// Status is the verdict of an evaluation.
type Status string

const (
	Pass  Status = "pass"
	Fail  Status = "fail"
	Error Status = "error"
)

// Outcome is the classified result shown to the learner.
type Outcome struct {
	Status         Status `json:"status"`
	ExpectedOutput string `json:"expected"`
	GotInstead     string `json:"output"`
	Errors         string `json:"errors"`
}

// Stage is a step of the evaluation pipeline.
type Stage int

const (
	StageNone Stage = iota
	StageStaged
	StageExecuted
	StageClassified
	StageCleaned
)

func (s Stage) String() string {
	switch s {
	case StageStaged:
		return "staged"
	case StageExecuted:
		return "executed"
	case StageClassified:
		return "classified"
	case StageCleaned:
		return "cleaned"
	default:
		return "none"
	}
}

// Submission identifies the workspace and the lesson it is believed to hold.
type Submission struct {
	Workspace string
	Language  string
	Lesson    int
}

// Result is an Outcome plus pipeline bookkeeping.
type Result struct {
	Outcome
	Lesson   int
	Stage    Stage
	Duration time.Duration
}

// ErrBusy is returned when an evaluation is already in flight.
var ErrBusy = errors.New("an evaluation is already running")

// WorkspaceUnreachableError indicates the workspace cannot be accessed.
type WorkspaceUnreachableError struct {
	Path string
	Err  error
}

func (e *WorkspaceUnreachableError) Error() string {
	return fmt.Sprintf("workspace %s is unreachable: %v", e.Path, e.Err)
}

func (e *WorkspaceUnreachableError) Unwrap() error { return e.Err }

// LessonMismatchError indicates the lesson file found in the workspace
// disagrees with the persisted lesson number. Derived is -1 when no lesson
// file was found.
type LessonMismatchError struct {
	Persisted int
	Derived   int
}

func (e *LessonMismatchError) Error() string {
	if e.Derived < 0 {
		return fmt.Sprintf("workspace has no lesson file, expected lesson %d", e.Persisted)
	}
	return fmt.Sprintf("workspace holds lesson %d, expected lesson %d", e.Derived, e.Persisted)
}
