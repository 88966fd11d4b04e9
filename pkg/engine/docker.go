package engine

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// HostEnv overrides the address published ports are reached on.
const HostEnv = "TESTBOX_HOST"

// dockerAPI is the subset of the Docker SDK client used by Docker.
type dockerAPI interface {
	Info(ctx context.Context) (system.Info, error)
	DaemonHost() string
	Close() error

	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)

	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)

	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// Docker implements Engine on top of the Docker SDK.
type Docker struct {
	cli    dockerAPI
	host   string
	logger *log.Logger
}

// Option configures a Docker engine.
type Option func(*dockerOptions)

type dockerOptions struct {
	clientOpts []client.Opt
	host       string
	logger     *log.Logger
}

// WithClientOpts adds Docker SDK client options. The defaults read the
// connection from the environment (DOCKER_HOST and friends) and negotiate
// the API version.
func WithClientOpts(opts ...client.Opt) Option {
	return func(o *dockerOptions) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithHost sets the address published ports are reached on, overriding the
// one derived from the daemon address.
func WithHost(host string) Option {
	return func(o *dockerOptions) {
		o.host = host
	}
}

// WithLogger sets the logger used for engine calls.
func WithLogger(logger *log.Logger) Option {
	return func(o *dockerOptions) {
		o.logger = logger
	}
}

// NewDocker creates a Docker engine.
func NewDocker(opts ...Option) (*Docker, error) {
	o := dockerOptions{
		clientOpts: []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()},
		host:       os.Getenv(HostEnv),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cli, err := client.NewClientWithOpts(o.clientOpts...)
	if err != nil {
		return nil, wrap("connect", err)
	}

	return newDocker(cli, o.host, o.logger), nil
}

func newDocker(cli dockerAPI, host string, logger *log.Logger) *Docker {
	if host == "" {
		host = hostFromDaemon(cli.DaemonHost())
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Docker{
		cli:    cli,
		host:   host,
		logger: logger.WithPrefix("engine"),
	}
}

// Close closes the underlying Docker client.
func (d *Docker) Close() error {
	return d.cli.Close()
}

// Host returns the address published ports are reachable on.
func (d *Docker) Host() string {
	return d.host
}

// Info returns the engine version and capacity.
func (d *Docker) Info(ctx context.Context) (Info, error) {
	info, err := d.cli.Info(ctx)
	if err != nil {
		return Info{}, wrap("info", err)
	}
	return Info{
		Version:  info.ServerVersion,
		NCPU:     info.NCPU,
		MemTotal: info.MemTotal,
	}, nil
}

// hostFromDaemon derives the host address from the daemon URL. Local
// sockets publish on localhost; remote daemons publish on their own host.
func hostFromDaemon(daemonHost string) string {
	u, err := url.Parse(daemonHost)
	if err != nil {
		return "localhost"
	}

	switch u.Scheme {
	case "tcp", "http", "https", "ssh":
		if h := u.Hostname(); h != "" && !strings.HasPrefix(h, "127.") {
			return h
		}
	}
	return "localhost"
}
