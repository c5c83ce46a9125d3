package lessons

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the per-language manifest at the root of each language
// directory.
const ManifestFile = "language.yaml"

// Language describes how lessons of one language are staged and run.
type Language struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Extension string `yaml:"extension"`

	// Runtime lists candidate executable names, first found wins.
	Runtime     []string `yaml:"runtime"`
	VersionArgs []string `yaml:"versionArgs"`
	MinVersion  string   `yaml:"minVersion"`

	// Command runs a staged test. {runtime} and {test} are substituted.
	Command []string `yaml:"command"`

	// Env is added to the environment of test and bootstrap runs.
	Env []string `yaml:"env"`

	// Bootstrap commands prepare a fresh workspace, e.g. a virtualenv.
	Bootstrap [][]string `yaml:"bootstrap"`

	// Image is the container image used by the sandboxed runner.
	Image string `yaml:"image"`
}

// BaseFile returns the name of the base file, e.g. "base.py".
func (l *Language) BaseFile() string {
	return "base" + l.Extension
}

// LessonFile returns the name of lesson n, e.g. "lesson3.py".
func (l *Language) LessonFile(n int) string {
	return fmt.Sprintf("lesson%d%s", n, l.Extension)
}

// TestPattern is the os.CreateTemp pattern the hidden test is staged
// under. The random part never collides with a learner's own files.
func (l *Language) TestPattern() string {
	return ".codetutor_test_*" + l.Extension
}

// Expand substitutes {runtime} and {test} in a command template.
func Expand(tmpl []string, runtime, test string) []string {
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		a = strings.ReplaceAll(a, "{runtime}", runtime)
		out[i] = strings.ReplaceAll(a, "{test}", test)
	}
	return out
}

var manifestSchema = map[string]any{
	"type":     "object",
	"required": []any{"id", "extension", "runtime", "command"},
	"properties": map[string]any{
		"id":        map[string]any{"type": "string", "pattern": "^[a-z][a-z0-9_-]*$"},
		"name":      map[string]any{"type": "string"},
		"extension": map[string]any{"type": "string", "pattern": "^\\.[A-Za-z0-9]+$"},
		"runtime": map[string]any{
			"type": "array", "minItems": 1,
			"items": map[string]any{"type": "string", "minLength": 1},
		},
		"versionArgs": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"minVersion":  map[string]any{"type": "string", "pattern": "^v[0-9]+(\\.[0-9]+){0,2}$"},
		"command": map[string]any{
			"type": "array", "minItems": 1,
			"items": map[string]any{"type": "string"},
		},
		"env": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*="},
		},
		"bootstrap": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "array", "minItems": 1,
				"items": map[string]any{"type": "string"},
			},
		},
		"image": map[string]any{"type": "string"},
	},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func getManifestSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler expects a parsed JSON value, not Go literals.
		var def any
		if compileErr = roundTrip(manifestSchema, &def); compileErr != nil {
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://language-manifest.json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(url)
	})
	return compiledSchema, compileErr
}

// ParseManifest decodes and validates a language manifest.
func ParseManifest(data []byte) (*Language, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	var doc any
	if err := roundTrip(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	schema, err := getManifestSchema()
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var lang Language
	if err := yaml.Unmarshal(data, &lang); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(lang.VersionArgs) == 0 {
		lang.VersionArgs = []string{"--version"}
	}
	return &lang, nil
}

// roundTrip converts v to plain JSON types.
func roundTrip(v any, out *any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
