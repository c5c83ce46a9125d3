// Package lessons maps (language, lesson number) to the read-only fixture
// tree and stages fixture files into learner workspaces.
//
// Layout of a language directory:
//
//	<lang>/language.yaml
//	<lang>/base/base<ext>
//	<lang>/lessons/lesson<N><ext>
//	<lang>/tests/test<N><ext>
//	<lang>/instructions/lesson<N>.md
package lessons

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

//go:embed all:content
var content embed.FS

var (
	// ErrNotFound indicates an unknown language id.
	ErrNotFound = errors.New("language not found")

	// ErrFixtureMissing indicates a fixture file absent from the tree.
	ErrFixtureMissing = errors.New("fixture missing")
)

// Store resolves fixtures for the languages found in a content tree.
// Languages are discovered once, when the Store is created.
type Store struct {
	fsys  fs.FS
	langs map[string]*Language
	ids   []string
}

// Default returns a Store over the built-in lesson content.
func Default() (*Store, error) {
	sub, err := fs.Sub(content, "content")
	if err != nil {
		return nil, err
	}
	return NewStore(sub)
}

// OpenDir returns a Store over a content tree on disk.
func OpenDir(dir string) (*Store, error) {
	return NewStore(os.DirFS(dir))
}

// NewStore lists the languages directory and loads every manifest.
func NewStore(fsys fs.FS) (*Store, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}

	s := &Store{fsys: fsys, langs: make(map[string]*Language)}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(e.Name(), ManifestFile))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s manifest: %w", e.Name(), err)
		}
		lang, err := ParseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if lang.ID != e.Name() {
			return nil, fmt.Errorf("%s: manifest id %q does not match directory", e.Name(), lang.ID)
		}
		s.langs[lang.ID] = lang
		s.ids = append(s.ids, lang.ID)
	}
	sort.Strings(s.ids)
	return s, nil
}

// Languages returns the discovered language ids, sorted.
func (s *Store) Languages() []string {
	return append([]string(nil), s.ids...)
}

// Language returns the manifest for id.
func (s *Store) Language(id string) (*Language, error) {
	lang, ok := s.langs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return lang, nil
}

// ResolveLanguageRoot returns the root of the language's fixture tree.
func (s *Store) ResolveLanguageRoot(id string) (string, error) {
	if _, err := s.Language(id); err != nil {
		return "", err
	}
	return id, nil
}

// MaxLessons counts the instruction files of a language. This is the
// authoritative lesson count; lesson and test fixtures must match it.
func (s *Store) MaxLessons(id string) (int, error) {
	root, err := s.ResolveLanguageRoot(id)
	if err != nil {
		return 0, err
	}
	entries, err := fs.ReadDir(s.fsys, path.Join(root, "instructions"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list instructions: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// Instructions returns the markdown instructions for lesson n.
func (s *Store) Instructions(id string, n int) (string, error) {
	root, err := s.ResolveLanguageRoot(id)
	if err != nil {
		return "", err
	}
	data, err := s.read(path.Join(root, "instructions", fmt.Sprintf("lesson%d.md", n)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StageLessonFiles copies lesson n, and the base file when includeBase is
// set, into destDir. Existing files are overwritten.
func (s *Store) StageLessonFiles(id string, n int, destDir string, includeBase bool) error {
	lang, err := s.Language(id)
	if err != nil {
		return err
	}

	if includeBase {
		if err := s.copy(path.Join(id, "base", lang.BaseFile()), filepath.Join(destDir, lang.BaseFile())); err != nil {
			return err
		}
	}
	return s.copy(path.Join(id, "lessons", lang.LessonFile(n)), filepath.Join(destDir, lang.LessonFile(n)))
}

// RestoreLesson overwrites lesson n in destDir with the pristine fixture.
func (s *Store) RestoreLesson(id string, n int, destDir string) error {
	return s.StageLessonFiles(id, n, destDir, false)
}

// StageTestFile copies the hidden test for lesson n into a new file in
// destDir and returns its path. Existing files are never overwritten. The
// caller deletes it.
func (s *Store) StageTestFile(id string, n int, destDir string) (string, error) {
	lang, err := s.Language(id)
	if err != nil {
		return "", err
	}
	data, err := s.read(path.Join(id, "tests", fmt.Sprintf("test%d%s", n, lang.Extension)))
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(destDir, lang.TestPattern())
	if err != nil {
		return "", fmt.Errorf("stage test: %w", err)
	}
	dst := f.Name()
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(dst, 0o644)
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("stage test: %w", err)
	}
	return dst, nil
}

func (s *Store) read(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFixtureMissing, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) copy(src, dst string) error {
	data, err := s.read(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(dst), err)
	}
	return nil
}
