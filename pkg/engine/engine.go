package engine

import (
	"context"
	"io"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/rickgorman/testbox/pkg/image"
	"github.com/rickgorman/testbox/pkg/ports"
)

// Engine is the container engine as seen by the orchestrator.
type Engine interface {
	Info(ctx context.Context) (Info, error)
	Host() string

	Pull(ctx context.Context, ref image.Reference) error
	BuildImage(ctx context.Context, req BuildRequest) error
	// ListImages returns the locally known images. Untagged images are
	// left out.
	ListImages(ctx context.Context) ([]image.Reference, error)

	Create(ctx context.Context, req CreateRequest) (string, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, timeout time.Duration) error
	Remove(ctx context.Context, id string, removeVolumes bool) error
	Inspect(ctx context.Context, id string) (State, error)

	Exec(ctx context.Context, id string, cmd []string) (ExecResult, error)
	// Logs returns stdout and stderr written since the container started.
	Logs(ctx context.Context, id string) (io.ReadCloser, error)
}

// Info describes the engine.
type Info struct {
	Version  string
	NCPU     int
	MemTotal int64
}

// AtLeast reports whether the engine version is min or newer.
func (i Info) AtLeast(min string) (bool, error) {
	want, err := semver.NewVersion(min)
	if err != nil {
		return false, err
	}
	have, err := semver.NewVersion(i.Version)
	if err != nil {
		return false, err
	}
	return !have.LessThan(want), nil
}

// BindMount mounts a host path into the container.
type BindMount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// CreateRequest describes a container to create.
type CreateRequest struct {
	Image  image.Reference
	Name   string
	Env    map[string]string
	Cmd    []string
	Labels map[string]string

	// Ports lists the exposed container ports and the host ports they are
	// published on, in declaration order.
	Ports *ports.Bound
	// HostIP is the host address ports are published on.
	HostIP string

	Mounts []BindMount
	// Tmpfs maps container paths to tmpfs mount options.
	Tmpfs map[string]string
}

// BuildRequest describes an image build.
type BuildRequest struct {
	Image      image.Reference
	Context    io.Reader
	Dockerfile string
	Args       map[string]string
	Labels     map[string]string
}

// ExecResult is the outcome of a command run inside a container.
type ExecResult struct {
	// Output holds stdout and stderr interleaved.
	Output   []byte
	ExitCode int
}
