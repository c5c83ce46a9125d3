package study

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/abhisek/codetutor/internal/runner"
	"github.com/abhisek/codetutor/internal/store"
)

// ModelHostBinary is the local model host looked up on PATH.
const ModelHostBinary = "ollama"

// ModelHost installs models through the local model host binary whose
// path is kept in the state store.
type ModelHost struct {
	state  store.StateRepo
	host   Host
	lookup func(string) (string, error)
}

// NewModelHost creates a ModelHost. lookup defaults to runner.LookPath.
func NewModelHost(state store.StateRepo, host Host, lookup func(string) (string, error)) *ModelHost {
	if lookup == nil {
		lookup = runner.LookPath
	}
	return &ModelHost{state: state, host: host, lookup: lookup}
}

// Setup locates the model host binary and stores its path. An explicit
// path must point to an existing file.
func (m *ModelHost) Setup(ctx context.Context, explicitPath string) (string, error) {
	path := explicitPath
	if path == "" {
		found, err := m.lookup(ModelHostBinary)
		if err != nil {
			return "", &EnvironmentMissingError{
				What: ModelHostBinary,
				Hint: "install it from https://ollama.com or pass its path to `codetutor setup --ollama-path`",
				Err:  err,
			}
		}
		path = found
	} else if _, err := os.Stat(path); err != nil {
		return "", &EnvironmentMissingError{What: path, Err: err}
	}

	if err := m.state.SetModelHostPath(ctx, path); err != nil {
		return "", err
	}
	slog.Info("model host configured", "path", path)
	return path, nil
}

// Path returns the stored model host path.
func (m *ModelHost) Path(ctx context.Context) (string, error) {
	path, err := m.state.ModelHostPath(ctx)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", ErrModelHostNotConfigured
	}
	return path, nil
}

// Install pulls model in a terminal the learner can watch. params is
// appended as a tag when the model name carries none.
func (m *ModelHost) Install(ctx context.Context, model, params string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model name is empty")
	}
	if params = strings.TrimSpace(params); params != "" && !strings.Contains(model, ":") {
		model += ":" + params
	}

	path, err := m.Path(ctx)
	if err != nil {
		return err
	}
	slog.Info("installing model", "model", model)
	return m.host.RunInTerminal(ctx, runner.Command{Name: path, Args: []string{"pull", model}})
}
