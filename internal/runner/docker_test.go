package runner

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	createErr error
	exitCode  int64
	stdout    string
	stderr    string

	config  *container.Config
	host    *container.HostConfig
	removed []string
}

func (f *fakeDocker) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.config = config
	f.host = hostConfig
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	return container.CreateResponse{ID: "c1"}, nil
}

func (f *fakeDocker) ContainerStart(context.Context, string, container.StartOptions) error {
	return nil
}

func (f *fakeDocker) ContainerWait(context.Context, string, container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	waitCh := make(chan container.WaitResponse, 1)
	waitCh <- container.WaitResponse{StatusCode: f.exitCode}
	return waitCh, make(chan error)
}

func (f *fakeDocker) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	return nil
}

func TestDocker_DemuxesOutputAndRemoves(t *testing.T) {
	fake := &fakeDocker{exitCode: 1, stdout: "Failed.\n", stderr: "AssertionError: 'a' vs 'b'\n"}
	d := &Docker{cli: fake, image: "python:3.12-slim"}

	res, err := d.Run(context.Background(), Command{Name: "python3", Args: []string{"test.py"}, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "Failed.\n", res.Stdout)
	assert.Equal(t, "AssertionError: 'a' vs 'b'\n", res.Stderr)
	assert.Equal(t, 1, res.ExitCode)
	assert.Error(t, res.Err)

	assert.Equal(t, []string{"python3", "test.py"}, []string(fake.config.Cmd))
	assert.Equal(t, sandboxWorkdir, fake.config.WorkingDir)
	assert.True(t, fake.config.NetworkDisabled)
	require.Len(t, fake.host.Mounts, 1)
	assert.Equal(t, []string{"c1"}, fake.removed)
}

func TestDocker_MissingImage(t *testing.T) {
	fake := &fakeDocker{createErr: errdefs.ErrNotFound}
	d := &Docker{cli: fake, image: "nope:latest"}

	_, err := d.Run(context.Background(), Command{Name: "python3", Dir: t.TempDir()})
	var nf *ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, fake.removed)
}
