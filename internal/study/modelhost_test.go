package study

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codetutor/internal/runner"
)

func TestModelHost_SetupAndInstall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mh := NewModelHost(f.db.StateRepo(), f.host, func(name string) (string, error) {
		return "/opt/bin/" + name, nil
	})

	require.ErrorIs(t, mh.Install(ctx, "llama3", ""), ErrModelHostNotConfigured)

	path, err := mh.Setup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "/opt/bin/ollama", path)

	require.NoError(t, mh.Install(ctx, "deepseek-r1", "1.5b"))
	require.NoError(t, mh.Install(ctx, "llama3:8b", "ignored"))

	require.Len(t, f.host.terminal, 2)
	assert.Equal(t, "/opt/bin/ollama", f.host.terminal[0].Name)
	assert.Equal(t, []string{"pull", "deepseek-r1:1.5b"}, f.host.terminal[0].Args)
	assert.Equal(t, []string{"pull", "llama3:8b"}, f.host.terminal[1].Args)
}

func TestModelHost_SetupMissing(t *testing.T) {
	f := newFixture(t)
	mh := NewModelHost(f.db.StateRepo(), f.host, func(name string) (string, error) {
		return "", &runner.ErrNotFound{Name: name, Err: errors.New("not in PATH")}
	})

	_, err := mh.Setup(context.Background(), "")
	assert.Equal(t, KindEnvironmentMissing, Kind(err))

	_, err = mh.Setup(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, KindEnvironmentMissing, Kind(err))
}

func TestModelHost_SurvivesSessionReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mh := NewModelHost(f.db.StateRepo(), f.host, identityLookup)

	_, err := mh.Setup(ctx, "")
	require.NoError(t, err)
	f.start(t)
	require.NoError(t, f.session.End(ctx))

	path, err := mh.Path(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ollama", path)
}
