// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/codetutor/internal/llm"
)

// Sandbox modes for running learner code.
const (
	SandboxLocal  = "local"
	SandboxDocker = "docker"
)

// Config holds all application configuration.
type Config struct {
	DBPath      string        // "" resolves store.DefaultDBPath
	ContentDir  string        // "" uses the built-in lessons
	Sandbox     string        // "local" or "docker"
	EvalTimeout time.Duration // per submission
	ServeAddr   string
	Editor      string
	Debug       bool
	LLM         llm.Config
}

// LoadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no .env file found, using environment variables")
			return
		}
		slog.Warn("failed to load .env", "error", err)
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	timeout := getEnvDuration("CODETUTOR_EVAL_TIMEOUT", 30*time.Second)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg := &Config{
		DBPath:      getEnv("CODETUTOR_DB", ""),
		ContentDir:  getEnv("CODETUTOR_CONTENT_DIR", ""),
		Sandbox:     strings.ToLower(getEnv("CODETUTOR_SANDBOX", SandboxLocal)),
		EvalTimeout: timeout,
		ServeAddr:   getEnv("CODETUTOR_ADDR", "127.0.0.1:7878"),
		Editor:      getEnv("VISUAL", getEnv("EDITOR", "")),
		Debug:       getEnvBool("CODETUTOR_DEBUG", false),
		LLM:         llm.ConfigFromEnv(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all configuration fields are usable.
func (c *Config) Validate() error {
	switch c.Sandbox {
	case SandboxLocal, SandboxDocker:
	default:
		return fmt.Errorf("CODETUTOR_SANDBOX must be %q or %q, got %q", SandboxLocal, SandboxDocker, c.Sandbox)
	}
	if c.ServeAddr == "" {
		return fmt.Errorf("CODETUTOR_ADDR cannot be empty")
	}
	if c.ContentDir != "" {
		info, err := os.Stat(c.ContentDir)
		if err != nil {
			return fmt.Errorf("CODETUTOR_CONTENT_DIR: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("CODETUTOR_CONTENT_DIR %s is not a directory", c.ContentDir)
		}
	}
	return c.LLM.Validate()
}

// NewLogger builds the process logger: text for the CLI, JSON for the web
// host, debug level when verbose.
func NewLogger(w io.Writer, jsonFormat, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if jsonFormat {
		if !verbose {
			opts.Level = slog.LevelInfo
		}
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
