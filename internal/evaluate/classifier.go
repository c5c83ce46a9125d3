package evaluate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/abhisek/codetutor/internal/runner"
)

// Classifier turns raw process output into an Outcome for one language.
type Classifier interface {
	Classify(out *runner.Result) Outcome
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(out *runner.Result) Outcome

func (f ClassifierFunc) Classify(out *runner.Result) Outcome { return f(out) }

// Registry maps language ids to classifiers.
type Registry struct {
	mu          sync.RWMutex
	classifiers map[string]Classifier
}

// NewRegistry returns a Registry with the built-in classifiers.
func NewRegistry() *Registry {
	r := &Registry{classifiers: make(map[string]Classifier)}
	r.Register("python", PythonClassifier{})
	return r
}

// Register adds or replaces the classifier for a language id.
func (r *Registry) Register(language string, c Classifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifiers[language] = c
}

// Lookup returns the classifier for a language id.
func (r *Registry) Lookup(language string) (Classifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classifiers[language]
	return c, ok
}

// Languages returns the registered language ids, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.classifiers))
	for id := range r.classifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Classify applies the language's classifier. A missing classifier or a
// panicking one yields an Error outcome.
func (r *Registry) Classify(language string, out *runner.Result) (o Outcome) {
	c, ok := r.Lookup(language)
	if !ok {
		return Outcome{Status: Error, Errors: fmt.Sprintf("no outcome classifier registered for language %q", language)}
	}
	defer func() {
		if p := recover(); p != nil {
			o = Outcome{Status: Error, Errors: fmt.Sprintf("%s classifier failed: %v", language, p)}
		}
	}()
	return c.Classify(out)
}

// PythonClassifier reads the output of assertion-style test scripts that
// print "OK" on success and write an AssertionError line to stderr on
// failure.
type PythonClassifier struct{}

const inequalityMarker = " =! "

func (PythonClassifier) Classify(out *runner.Result) Outcome {
	lines := nonBlankLines(out.Stdout + "\n" + out.Stderr)
	stderr := strings.TrimSpace(out.Stderr)

	if len(lines) > 0 && strings.Contains(lines[len(lines)-1], "OK") && !spawnFailed(out) && stderr == "" {
		return Outcome{Status: Pass}
	}

	for _, line := range nonBlankLines(out.Stderr) {
		if !strings.Contains(line, "AssertionError") {
			continue
		}
		o := Outcome{Status: Fail, Errors: line}
		switch {
		case strings.Contains(line, "'"):
			parts := strings.Split(line, "'")
			if len(parts) > 1 {
				o.ExpectedOutput = parts[1]
			}
			if len(parts) > 3 {
				o.GotInstead = parts[3]
			}
		case strings.Contains(line, inequalityMarker):
			msg := line
			if _, after, ok := strings.Cut(line, "AssertionError:"); ok {
				msg = after
			}
			parts := strings.Split(msg, inequalityMarker)
			o.ExpectedOutput = strings.TrimSpace(parts[0])
			o.GotInstead = strings.TrimSpace(parts[1])
		}
		return o
	}

	return Outcome{Status: Error, Errors: errorText(out)}
}

// spawnFailed reports a process that never ran to an exit status: it
// could not be started, timed out or was killed. A non-zero exit alone
// does not count.
func spawnFailed(out *runner.Result) bool {
	return out.Err != nil && out.ExitCode == -1
}

func errorText(out *runner.Result) string {
	if s := strings.TrimSpace(out.Stderr); s != "" {
		return s
	}
	if out.Err != nil {
		return out.Err.Error()
	}
	if s := strings.TrimSpace(out.Stdout); s != "" {
		return "test did not report a result:\n" + s
	}
	return "test produced no output"
}

func nonBlankLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
