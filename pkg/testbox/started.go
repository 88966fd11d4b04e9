package testbox

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
	"github.com/rickgorman/testbox/pkg/ports"
)

// DefaultStopTimeout is how long Stop lets the container shut down before
// it is killed.
const DefaultStopTimeout = 10 * time.Second

// Container is a started container.
type Container struct {
	id     string
	name   string
	host   string
	image  image.Reference
	bound  *ports.Bound
	engine engine.Engine
	logger *log.Logger

	mu      sync.Mutex
	stopped bool
}

// ID returns the engine's container ID.
func (c *Container) ID() string { return c.id }

// Name returns the container name.
func (c *Container) Name() string { return c.name }

// Host returns the address published ports are reachable on.
func (c *Container) Host() string { return c.host }

// Image returns the image the container runs.
func (c *Container) Image() image.Reference { return c.image }

func (c *Container) checkRunning() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	return nil
}

// MappedPort returns the host port the container port p is published on.
func (c *Container) MappedPort(p ports.Port) (ports.Port, error) {
	if err := c.checkRunning(); err != nil {
		return ports.Port{}, err
	}
	if p.Protocol == "" {
		p.Protocol = ports.ProtocolTCP
	}
	return c.bound.Get(p)
}

// Ports returns every published port.
func (c *Container) Ports() ([]ports.Binding, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	return c.bound.Bindings(), nil
}

// Exec runs cmd inside the container and waits for it to exit.
func (c *Container) Exec(ctx context.Context, cmd ...string) (engine.ExecResult, error) {
	if err := c.checkRunning(); err != nil {
		return engine.ExecResult{}, err
	}
	return c.engine.Exec(ctx, c.id, cmd)
}

// Logs returns everything the container wrote to stdout and stderr.
func (c *Container) Logs(ctx context.Context) (io.ReadCloser, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	return c.engine.Logs(ctx, c.id)
}

// Inspect returns the current container state.
func (c *Container) Inspect(ctx context.Context) (engine.State, error) {
	if err := c.checkRunning(); err != nil {
		return engine.State{}, err
	}
	return c.engine.Inspect(ctx, c.id)
}

// Stopped describes a container that was stopped and removed.
type Stopped struct {
	ID    string
	Name  string
	Image image.Reference
}

type stopOptions struct {
	timeout       time.Duration
	removeVolumes bool
}

func newStopOptions(opts []StopOption) stopOptions {
	o := stopOptions{timeout: DefaultStopTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StopOption configures Stop and StartError.Cleanup.
type StopOption func(*stopOptions)

// StopTimeout sets how long the container may take to shut down.
func StopTimeout(d time.Duration) StopOption {
	return func(o *stopOptions) {
		o.timeout = d
	}
}

// RemoveVolumes removes the container's anonymous volumes with it.
func RemoveVolumes(remove bool) StopOption {
	return func(o *stopOptions) {
		o.removeVolumes = remove
	}
}

// Stop stops and removes the container. Once the engine has stopped it,
// every operation but ID, Name and Host fails with ErrStopped, including a
// second Stop.
func (c *Container) Stop(ctx context.Context, opts ...StopOption) (Stopped, error) {
	o := newStopOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return Stopped{}, ErrStopped
	}

	if err := c.engine.Stop(ctx, c.id, o.timeout); err != nil {
		return Stopped{}, err
	}
	c.stopped = true

	if err := c.engine.Remove(ctx, c.id, o.removeVolumes); err != nil {
		return Stopped{}, err
	}

	c.logger.Info("container stopped", "container", c.name)
	return Stopped{ID: c.id, Name: c.name, Image: c.image}, nil
}

// target exposes a container to wait strategies. It does not check the
// stopped flag since strategies only run before the container is handed
// out.
type target struct {
	c *Container
}

func (t target) Host() string {
	return t.c.host
}

func (t target) Exec(ctx context.Context, cmd []string) (engine.ExecResult, error) {
	return t.c.engine.Exec(ctx, t.c.id, cmd)
}

func (t target) Logs(ctx context.Context) (io.ReadCloser, error) {
	return t.c.engine.Logs(ctx, t.c.id)
}

func (t target) Inspect(ctx context.Context) (engine.State, error) {
	return t.c.engine.Inspect(ctx, t.c.id)
}
