package evaluate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhisek/codetutor/internal/runner"
)

func TestPythonClassifier(t *testing.T) {
	tests := []struct {
		name string
		out  runner.Result
		want Outcome
	}{
		{
			name: "pass",
			out:  runner.Result{Stdout: "Hello, World!\nOK.\n"},
			want: Outcome{Status: Pass},
		},
		{
			name: "quoted assertion",
			out: runner.Result{
				Stdout: "Failed.\n",
				Stderr: "AssertionError: Expected 'Hello, World!' instead of 'Hello World'\n",
				Err:    errors.New("exit status 1"),
			},
			want: Outcome{
				Status:         Fail,
				ExpectedOutput: "Hello, World!",
				GotInstead:     "Hello World",
				Errors:         "AssertionError: Expected 'Hello, World!' instead of 'Hello World'",
			},
		},
		{
			name: "quoted containment assertion",
			out: runner.Result{
				Stdout: "...\n",
				Stderr: "AssertionError: 'expected' not found in 'actual'\n",
			},
			want: Outcome{
				Status:         Fail,
				ExpectedOutput: "expected",
				GotInstead:     "actual",
				Errors:         "AssertionError: 'expected' not found in 'actual'",
			},
		},
		{
			name: "pass with bare OK",
			out:  runner.Result{Stdout: "...\nOK\n"},
			want: Outcome{Status: Pass},
		},
		{
			name: "inequality assertion",
			out: runner.Result{
				Stderr: "Traceback (most recent call last):\n  File \"test.py\", line 4\nAssertionError: 5 =! 6\n",
				Err:    errors.New("exit status 1"),
			},
			want: Outcome{
				Status:         Fail,
				ExpectedOutput: "5",
				GotInstead:     "6",
				Errors:         "AssertionError: 5 =! 6",
			},
		},
		{
			name: "bare assertion",
			out:  runner.Result{Stderr: "AssertionError\n", Err: errors.New("exit status 1")},
			want: Outcome{Status: Fail, Errors: "AssertionError"},
		},
		{
			name: "syntax error",
			out: runner.Result{
				Stderr: "  File \"lesson0.py\", line 1\n    print(\nSyntaxError: '(' was never closed\n",
				Err:    errors.New("exit status 1"),
			},
			want: Outcome{
				Status: Error,
				Errors: "File \"lesson0.py\", line 1\n    print(\nSyntaxError: '(' was never closed",
			},
		},
		{
			name: "OK with stderr noise is not a pass",
			out:  runner.Result{Stdout: "OK.\n", Stderr: "DeprecationWarning: foo\n"},
			want: Outcome{Status: Error, Errors: "DeprecationWarning: foo"},
		},
		{
			name: "OK with a non-zero exit is still a pass",
			out:  runner.Result{Stdout: "OK.\n", Err: errors.New("exit status 3"), ExitCode: 3},
			want: Outcome{Status: Pass},
		},
		{
			name: "OK before the process was killed is not a pass",
			out:  runner.Result{Stdout: "OK.\n", Err: errors.New("signal: killed"), ExitCode: -1},
			want: Outcome{Status: Error, Errors: "signal: killed"},
		},
		{
			name: "timeout",
			out:  runner.Result{Err: errors.New("context deadline exceeded"), ExitCode: -1},
			want: Outcome{Status: Error, Errors: "context deadline exceeded"},
		},
		{
			name: "silent",
			out:  runner.Result{},
			want: Outcome{Status: Error, Errors: "test produced no output"},
		},
		{
			name: "unrecognised stdout",
			out:  runner.Result{Stdout: "42\n"},
			want: Outcome{Status: Error, Errors: "test did not report a result:\n42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PythonClassifier{}.Classify(&tt.out)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_MissingClassifier(t *testing.T) {
	r := NewRegistry()
	o := r.Classify("cobol", &runner.Result{Stdout: "OK."})
	assert.Equal(t, Error, o.Status)
	assert.Contains(t, o.Errors, "cobol")
}

func TestRegistry_PanickingClassifier(t *testing.T) {
	r := NewRegistry()
	r.Register("toy", ClassifierFunc(func(*runner.Result) Outcome {
		panic("boom")
	}))

	o := r.Classify("toy", &runner.Result{})
	assert.Equal(t, Error, o.Status)
	assert.Contains(t, o.Errors, "boom")
	assert.Equal(t, []string{"python", "toy"}, r.Languages())
}
