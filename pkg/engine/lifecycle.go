package engine

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// Create creates a container and returns its ID.
func (d *Docker) Create(ctx context.Context, req CreateRequest) (string, error) {
	containerConfig := buildContainerConfig(req)
	hostConfig := buildHostConfig(req)

	resp, err := d.cli.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		req.Name,
	)
	if err != nil {
		return "", wrap("create", err)
	}

	d.logger.Debug("container created", "id", shortID(resp.ID), "image", req.Image)
	return resp.ID, nil
}

// Start starts a created container.
func (d *Docker) Start(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return wrap("start", err)
	}
	d.logger.Debug("container started", "id", shortID(id))
	return nil
}

// Stop stops a container, killing it after timeout.
func (d *Docker) Stop(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Round(time.Second) / time.Second)
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return wrap("stop", err)
	}
	d.logger.Debug("container stopped", "id", shortID(id))
	return nil
}

// Remove removes a container.
func (d *Docker) Remove(ctx context.Context, id string, removeVolumes bool) error {
	options := container.RemoveOptions{
		Force:         true,
		RemoveVolumes: removeVolumes,
	}
	if err := d.cli.ContainerRemove(ctx, id, options); err != nil {
		return wrap("remove", err)
	}
	d.logger.Debug("container removed", "id", shortID(id))
	return nil
}

// Inspect returns a snapshot of the container state.
func (d *Docker) Inspect(ctx context.Context, id string) (State, error) {
	resp, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return State{}, wrap("inspect", err)
	}
	return stateFromInspect(resp), nil
}

// Logs returns the container's stdout and stderr since start.
func (d *Docker) Logs(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return nil, wrap("logs", err)
	}

	// Containers are created without a TTY, so the stream is multiplexed.
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		rc.Close()
		pw.CloseWithError(err)
	}()

	return pr, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
