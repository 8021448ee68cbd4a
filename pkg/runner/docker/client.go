package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/platinummonkey/hatch/pkg/runner"
)

const (
	pingTimeout = 5 * time.Second
	pullTimeout = 5 * time.Minute
)

// containerAPI is the subset of Engine API operations a run needs
type containerAPI interface {
	Ping(ctx context.Context) error
	EnsureImage(ctx context.Context, ref string) error
	Create(ctx context.Context, plan *runner.ContainerPlan) (string, error)
	Start(ctx context.Context, id string) error
	Wait(ctx context.Context, id string) (int64, error)
	Kill(ctx context.Context, id string) error
	Logs(ctx context.Context, id string) (string, string, error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// sdkClient adapts the Docker SDK client to containerAPI
type sdkClient struct {
	cli *client.Client

	mu         sync.Mutex
	imageCache map[string]bool // Track pulled images
}

func newSDKClient() (*sdkClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerNotAvailable, err)
	}
	return &sdkClient{
		cli:        cli,
		imageCache: make(map[string]bool),
	}, nil
}

// Ping checks that a Docker daemon answers on the environment's DOCKER_HOST
func Ping(ctx context.Context) error {
	c, err := newSDKClient()
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Ping(ctx)
}

func (c *sdkClient) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.cli.Ping(pingCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrDockerNotAvailable, err)
	}
	return nil
}

// EnsureImage pulls ref unless it is already present locally
func (c *sdkClient) EnsureImage(ctx context.Context, ref string) error {
	c.mu.Lock()
	cached := c.imageCache[ref]
	c.mu.Unlock()
	if cached {
		return nil
	}

	if _, err := c.cli.ImageInspect(ctx, ref); err == nil {
		c.markPulled(ref)
		return nil
	}

	pullCtx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	reader, err := c.cli.ImagePull(pullCtx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrImagePullFailed, ref, err)
	}
	defer reader.Close()

	// Read pull output to completion
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrImagePullFailed, ref, err)
	}

	c.markPulled(ref)
	return nil
}

func (c *sdkClient) markPulled(ref string) {
	c.mu.Lock()
	c.imageCache[ref] = true
	c.mu.Unlock()
}

// Create creates the container described by plan without starting it
func (c *sdkClient) Create(ctx context.Context, plan *runner.ContainerPlan) (string, error) {
	config := &container.Config{
		Image:           plan.Image,
		Cmd:             plan.Cmd,
		Env:             plan.Env,
		WorkingDir:      plan.Workdir,
		NetworkDisabled: true,
		AttachStdout:    true,
		AttachStderr:    true,
	}

	hostConfig := &container.HostConfig{
		NetworkMode:    container.NetworkMode("none"),
		ReadonlyRootfs: true,
		Tmpfs:          plan.Tmpfs,
		Binds:          []string{bindSpec(plan.Mount)},
		AutoRemove:     false, // Removed after logs are collected
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, plan.Name)
	if err != nil {
		return "", fmt.Errorf("%w: create failed: %v", ErrContainerFailed, err)
	}
	return resp.ID, nil
}

func (c *sdkClient) Start(ctx context.Context, id string) error {
	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("%w: start failed: %v", ErrContainerFailed, err)
	}
	return nil
}

// Wait blocks until the container stops or ctx is done
func (c *sdkClient) Wait(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := c.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: wait failed: %v", ErrContainerFailed, err)
	case status := <-statusCh:
		return status.StatusCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *sdkClient) Kill(ctx context.Context, id string) error {
	return c.cli.ContainerKill(ctx, id, "SIGKILL")
}

// Logs returns the demultiplexed stdout and stderr of the container
func (c *sdkClient) Logs(ctx context.Context, id string) (string, string, error) {
	logs, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", err
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return stdout.String(), stderr.String(), err
	}
	return stdout.String(), stderr.String(), nil
}

func (c *sdkClient) Remove(ctx context.Context, id string) error {
	return c.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
}

func (c *sdkClient) Close() error {
	return c.cli.Close()
}

func bindSpec(m runner.Mount) string {
	spec := m.Source + ":" + m.Target
	if m.ReadOnly {
		spec += ":ro"
	}
	return spec
}
