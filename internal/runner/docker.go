package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	sandboxWorkdir = "/workspace"

	// Resource limits.
	memoryLimitBytes = 256 * 1024 * 1024 // 256MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 64
)

// dockerAPI is the subset of the Docker client used by the sandbox.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Docker runs commands inside a throwaway container with the working
// directory bind-mounted at /workspace. The network is disabled.
type Docker struct {
	cli   dockerAPI
	image string
}

// NewDocker creates a sandboxed runner. image is used for commands that
// do not name one.
func NewDocker(image string) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Debug("Docker client initialized", "image", image)
	return &Docker{cli: cli, image: image}, nil
}

func (d *Docker) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, ErrEmptyCommand
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	hostDir, err := filepath.Abs(cmd.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}
	image := d.image
	if cmd.Image != "" {
		image = cmd.Image
	}

	config := &container.Config{
		Image:           image,
		Cmd:             append([]string{cmd.Name}, cmd.Args...),
		WorkingDir:      sandboxWorkdir,
		Env:             cmd.Env,
		NetworkDisabled: true,
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: hostDir,
			Target: sandboxWorkdir,
		}},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	start := time.Now()
	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, &ErrNotFound{Name: "image " + image, Err: err}
		}
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		// The run context may already be cancelled.
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
			slog.Warn("Failed to remove sandbox container", "container_id", resp.ID, "error", err)
		}
	}()

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return &Result{Err: fmt.Errorf("start container: %w", err), ExitCode: -1, Duration: time.Since(start)}, nil
	}

	res := &Result{}
	waitCh, errCh := d.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case w := <-waitCh:
		res.ExitCode = int(w.StatusCode)
		if w.Error != nil {
			res.Err = errors.New(w.Error.Message)
		} else if w.StatusCode != 0 {
			res.Err = fmt.Errorf("exit status %d", w.StatusCode)
		}
	case err := <-errCh:
		if ctx.Err() != nil && cmd.Timeout > 0 {
			res.Err = ctx.Err()
			res.ExitCode = -1
			res.Duration = time.Since(start)
			return res, nil
		}
		return nil, fmt.Errorf("wait container: %w", err)
	}

	logs, err := d.cli.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("demux logs: %w", err)
	}
	res.Stdout = normalizeNewlines(stdout.String())
	res.Stderr = normalizeNewlines(stderr.String())
	res.Duration = time.Since(start)
	return res, nil
}

func ptr[T any](v T) *T {
	return &v
}
