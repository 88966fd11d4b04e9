package engine

import (
	"bytes"
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// execPollInterval is how often a finished exec is inspected for its exit
// code while the engine still reports it running.
const execPollInterval = 50 * time.Millisecond

// Exec runs cmd inside the container and returns its combined output and
// exit code.
func (d *Docker) Exec(ctx context.Context, id string, cmd []string) (ExecResult, error) {
	created, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, wrap("exec", err)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, wrap("exec", err)
	}
	defer attach.Close()

	var output bytes.Buffer
	if _, err := stdcopy.StdCopy(&output, &output, attach.Reader); err != nil {
		return ExecResult{}, wrap("exec", err)
	}

	// The stream can close slightly before the engine records the exit code.
	for {
		inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
		if err != nil {
			return ExecResult{}, wrap("exec", err)
		}
		if !inspect.Running {
			return ExecResult{Output: output.Bytes(), ExitCode: inspect.ExitCode}, nil
		}

		select {
		case <-ctx.Done():
			return ExecResult{}, wrap("exec", ctx.Err())
		case <-time.After(execPollInterval):
		}
	}
}
