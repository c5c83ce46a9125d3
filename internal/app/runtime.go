// Package app wires the application together. A Runtime owns every
// long-lived resource and registration and releases them in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/abhisek/codetutor/internal/chat"
	"github.com/abhisek/codetutor/internal/config"
	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/host"
	"github.com/abhisek/codetutor/internal/lessons"
	"github.com/abhisek/codetutor/internal/llm"
	"github.com/abhisek/codetutor/internal/runner"
	"github.com/abhisek/codetutor/internal/store"
	"github.com/abhisek/codetutor/internal/study"
	"github.com/abhisek/codetutor/internal/webui"
)

// DefaultSandboxImage runs languages whose manifest names no image.
const DefaultSandboxImage = "python:3.12-slim"

// Options override parts of the configuration.
type Options struct {
	DBPath string
	Host   *host.Terminal
}

// Runtime is the application's object graph.
type Runtime struct {
	Config    *config.Config
	Store     *store.Store
	Lessons   *lessons.Store
	Runner    runner.Runner
	Evaluator *evaluate.Evaluator
	Host      *host.Terminal
	Study     *study.Session
	ModelHost *study.ModelHost

	mu            sync.Mutex
	registrations []registration
	streamer      llm.Streamer
	closed        bool
}

type registration struct {
	name    string
	dispose func() error
}

// New builds a Runtime from cfg.
func New(cfg *config.Config, opts Options) (*Runtime, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		dbPath = p
	} else if err := store.EnsureDir(dbPath); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rt := &Runtime{Config: cfg, Store: db, Host: opts.Host}
	if rt.Host == nil {
		rt.Host = host.NewTerminal()
	}
	rt.Host.Editor = cfg.Editor

	if err := rt.init(); err != nil {
		db.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) init() error {
	var err error
	if rt.Config.ContentDir != "" {
		rt.Lessons, err = lessons.OpenDir(rt.Config.ContentDir)
	} else {
		rt.Lessons, err = lessons.Default()
	}
	if err != nil {
		return fmt.Errorf("load lessons: %w", err)
	}

	lookup := lessons.LookupFunc(runner.LookPath)
	switch rt.Config.Sandbox {
	case config.SandboxDocker:
		d, err := runner.NewDocker(DefaultSandboxImage)
		if err != nil {
			return err
		}
		rt.Runner = d
		// Runtimes are resolved inside the image.
		lookup = func(name string) (string, error) { return name, nil }
	default:
		rt.Runner = runner.NewLocal()
	}

	classifiers := evaluate.NewRegistry()
	for _, id := range rt.Lessons.Languages() {
		if !slices.Contains(classifiers.Languages(), id) {
			slog.Warn("no output classifier for language; its submissions will report an error", "language", id)
		}
	}
	rt.Evaluator = evaluate.New(rt.Lessons, rt.Runner, classifiers, evaluate.Config{
		Timeout: rt.Config.EvalTimeout,
		Lookup:  lookup,
	})
	rt.Study = study.New(study.Deps{
		State:        rt.Store.StateRepo(),
		Events:       rt.Store.EventRepo(),
		Lessons:      rt.Lessons,
		Evaluator:    rt.Evaluator,
		Runner:       rt.Runner,
		Host:         rt.Host,
		Lookup:       lookup,
		BeforeReload: rt.disposeQuietly,
	})
	rt.ModelHost = study.NewModelHost(rt.Store.StateRepo(), rt.Host, nil)
	return nil
}

// Register adds a disposable registration. It is released by Dispose.
func (rt *Runtime) Register(name string, dispose func() error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.registrations = append(rt.registrations, registration{name: name, dispose: dispose})
}

// Dispose releases all registrations in reverse order of registration.
// The Runtime stays usable; new registrations may be added afterwards.
func (rt *Runtime) Dispose() error {
	rt.mu.Lock()
	regs := rt.registrations
	rt.registrations = nil
	rt.streamer = nil
	rt.mu.Unlock()

	var errs []error
	for i := len(regs) - 1; i >= 0; i-- {
		if err := regs[i].dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose %s: %w", regs[i].name, err))
		}
	}
	return errors.Join(errs...)
}

func (rt *Runtime) disposeQuietly() {
	if err := rt.Dispose(); err != nil {
		slog.Warn("failed to release registrations", "error", err)
	}
}

// Close disposes registrations and closes the database.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	rt.mu.Unlock()

	return errors.Join(rt.Dispose(), rt.Store.Close())
}

// Streamer returns the model host client, creating it on first use.
func (rt *Runtime) Streamer(ctx context.Context) (llm.Streamer, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.streamer != nil {
		return rt.streamer, nil
	}
	s, err := llm.NewStreamer(ctx, rt.Config.LLM, rt.Store.EventRepo())
	if err != nil {
		return nil, err
	}
	rt.streamer = s
	return s, nil
}

// Chat starts a conversation seeded with the current lesson's
// instructions, or none when no session is open.
func (rt *Runtime) Chat(ctx context.Context) (*chat.Session, error) {
	backend, err := rt.Streamer(ctx)
	if err != nil {
		return nil, err
	}
	instructions, err := rt.Study.Instructions(ctx)
	if err != nil && !errors.Is(err, study.ErrNoSession) {
		return nil, err
	}
	return chat.New(backend, instructions), nil
}

// DefaultModel is the configured model of the active provider.
func (rt *Runtime) DefaultModel() chat.Model {
	switch rt.Config.LLM.Provider {
	case "openai":
		return chat.ParseModel(rt.Config.LLM.OpenAI.Model)
	case "anthropic":
		return chat.ParseModel(rt.Config.LLM.Anthropic.Model)
	case "gemini":
		return chat.ParseModel(rt.Config.LLM.Gemini.Model)
	default:
		return chat.ParseModel(rt.Config.LLM.Ollama.Model)
	}
}

// WebServer builds the web host over the current study session.
func (rt *Runtime) WebServer(ctx context.Context) (*webui.Server, error) {
	backend, err := rt.Streamer(ctx)
	if err != nil {
		return nil, err
	}
	return webui.New(rt.Study, rt.ModelHost, backend), nil
}
