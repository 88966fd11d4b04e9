package testbox

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
	"github.com/rickgorman/testbox/pkg/ports"
	"github.com/rickgorman/testbox/pkg/wait"
)

// DefaultStartupTimeout bounds the wait for readiness.
const DefaultStartupTimeout = wait.DefaultTimeout

// LabelManaged is set on every container started by a Builder.
const LabelManaged = "org.testbox.managed"

// Bind mount modes.
const (
	ModeReadWrite = "rw"
	ModeReadOnly  = "ro"
)

// request is the container a Builder describes.
type request struct {
	image          image.Reference
	name           string
	env            map[string]string
	cmd            []string
	mounts         []engine.BindMount
	tmpfs          map[string]string
	exposed        []ports.Port
	labels         map[string]string
	startupTimeout time.Duration
	strategy       wait.Strategy
}

func (r request) clone() request {
	r.env = maps.Clone(r.env)
	r.cmd = slices.Clone(r.cmd)
	r.mounts = slices.Clone(r.mounts)
	r.tmpfs = maps.Clone(r.tmpfs)
	r.exposed = slices.Clone(r.exposed)
	r.labels = maps.Clone(r.labels)
	return r
}

// Builder describes a container to start. The With methods return the
// Builder so calls can be chained. An invalid option is reported by Start.
type Builder struct {
	engine engine.Engine

	mu        sync.Mutex
	req       request
	err       error
	allocator *ports.Allocator
	logger    *log.Logger
}

// New returns a Builder for a container running ref.
func New(eng engine.Engine, ref image.Reference) *Builder {
	return &Builder{
		engine: eng,
		req: request{
			image:          ref,
			env:            map[string]string{},
			tmpfs:          map[string]string{},
			labels:         map[string]string{LabelManaged: "true"},
			startupTimeout: DefaultStartupTimeout,
		},
		allocator: ports.NewAllocator(),
		logger:    log.Default(),
	}
}

func (b *Builder) update(fn func(r *request) error) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := fn(&b.req); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// WithCmd overrides the image's command.
func (b *Builder) WithCmd(cmd ...string) *Builder {
	return b.update(func(r *request) error {
		r.cmd = slices.Clone(cmd)
		return nil
	})
}

// WithName sets the container name. Without one the engine picks a name.
func (b *Builder) WithName(name string) *Builder {
	return b.update(func(r *request) error {
		r.name = name
		return nil
	})
}

// WithEnv sets one environment variable.
func (b *Builder) WithEnv(key, value string) *Builder {
	return b.update(func(r *request) error {
		r.env[key] = value
		return nil
	})
}

// WithEnvMap sets several environment variables.
func (b *Builder) WithEnvMap(env map[string]string) *Builder {
	return b.update(func(r *request) error {
		maps.Copy(r.env, env)
		return nil
	})
}

// WithEnvFile sets the variables of a dotenv file. Variables set before
// with the same key are overwritten.
func (b *Builder) WithEnvFile(path string) *Builder {
	return b.update(func(r *request) error {
		env, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		maps.Copy(r.env, env)
		return nil
	})
}

// WithTmpFs mounts tmpfs filesystems, keyed by container path with the
// mount options as value.
func (b *Builder) WithTmpFs(tmpfs map[string]string) *Builder {
	return b.update(func(r *request) error {
		maps.Copy(r.tmpfs, tmpfs)
		return nil
	})
}

// WithExposedPorts publishes container ports on free host ports. A port
// exposed twice is published once.
func (b *Builder) WithExposedPorts(exposed ...ports.Port) *Builder {
	return b.update(func(r *request) error {
		for _, p := range exposed {
			if p.Protocol == "" {
				p.Protocol = ports.ProtocolTCP
			}
			if err := p.Validate(); err != nil {
				return err
			}
			if !slices.Contains(r.exposed, p) {
				r.exposed = append(r.exposed, p)
			}
		}
		return nil
	})
}

// WithBindMount mounts the host path source at target. mode is "rw"
// (default) or "ro".
func (b *Builder) WithBindMount(source, target string, mode ...string) *Builder {
	return b.update(func(r *request) error {
		m := ModeReadWrite
		if len(mode) > 0 && mode[0] != "" {
			m = mode[0]
		}
		if m != ModeReadWrite && m != ModeReadOnly {
			return fmt.Errorf("invalid mode %q for bind mount %s: want %q or %q", m, target, ModeReadWrite, ModeReadOnly)
		}
		r.mounts = append(r.mounts, engine.BindMount{
			Source:   source,
			Target:   target,
			ReadOnly: m == ModeReadOnly,
		})
		return nil
	})
}

// WithLabel sets a container label.
func (b *Builder) WithLabel(key, value string) *Builder {
	return b.update(func(r *request) error {
		r.labels[key] = value
		return nil
	})
}

// WithStartupTimeout bounds the wait for readiness. Non-positive values
// restore DefaultStartupTimeout.
func (b *Builder) WithStartupTimeout(d time.Duration) *Builder {
	return b.update(func(r *request) error {
		if d <= 0 {
			d = DefaultStartupTimeout
		}
		r.startupTimeout = d
		return nil
	})
}

// WithWaitStrategy sets how readiness is detected. Without one, Start
// waits for every exposed TCP port to accept connections from the host and
// to be listening inside the container.
func (b *Builder) WithWaitStrategy(s wait.Strategy) *Builder {
	return b.update(func(r *request) error {
		r.strategy = s
		return nil
	})
}

// WithAllocator sets the allocator that picks host ports.
func (b *Builder) WithAllocator(a *ports.Allocator) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocator = a
	return b
}

// WithLogger sets the logger for lifecycle events.
func (b *Builder) WithLogger(logger *log.Logger) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

func (b *Builder) snapshot() (request, *ports.Allocator, *log.Logger, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.req.clone(), b.allocator, b.logger, b.err
}

// Start creates and starts the container and waits until it is ready.
//
// No Container is returned on error. Once the container exists, failures
// are reported as a *StartError and the container is left in place so it
// can be examined; the caller removes it with StartError.Cleanup.
func (b *Builder) Start(ctx context.Context) (*Container, error) {
	req, allocator, logger, err := b.snapshot()
	if err != nil {
		return nil, err
	}
	logger = logger.With("image", req.image)

	if err := b.ensureImage(ctx, req.image, logger); err != nil {
		return nil, err
	}

	bound, err := allocator.Bind(req.exposed)
	if err != nil {
		return nil, err
	}

	id, err := b.engine.Create(ctx, engine.CreateRequest{
		Image:  req.image,
		Name:   req.name,
		Env:    req.env,
		Cmd:    req.cmd,
		Labels: req.labels,
		Ports:  bound,
		HostIP: allocator.Address(),
		Mounts: req.mounts,
		Tmpfs:  req.tmpfs,
	})
	if err != nil {
		return nil, err
	}
	logger = logger.With("id", shortID(id))
	failed := func(err error) error {
		return &StartError{ContainerID: id, Err: err, engine: b.engine}
	}

	if err := b.engine.Start(ctx, id); err != nil {
		return nil, failed(err)
	}

	state, err := b.engine.Inspect(ctx, id)
	if err != nil {
		return nil, failed(err)
	}

	c := &Container{
		id:     id,
		name:   state.Name,
		host:   b.engine.Host(),
		image:  req.image,
		bound:  bound,
		engine: b.engine,
		logger: logger,
	}
	if c.name == "" {
		c.name = req.name
	}

	strategy := req.strategy
	if strategy == nil {
		strategy = wait.Default()
	}

	logger.Debug("waiting for container", "strategy", strategy, "timeout", req.startupTimeout)
	if err := wait.UntilReady(ctx, strategy, target{c}, state, bound, req.startupTimeout); err != nil {
		logger.Warn("container did not become ready", "err", err)
		return nil, failed(err)
	}

	logger.Info("container ready", "container", c.name)
	return c, nil
}

func (b *Builder) ensureImage(ctx context.Context, ref image.Reference, logger *log.Logger) error {
	local, err := b.engine.ListImages(ctx)
	if err != nil {
		return err
	}
	if image.Contains(local, ref) {
		return nil
	}

	logger.Info("pulling image")
	return b.engine.Pull(ctx, ref)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
