package engine

import (
	"maps"
	"slices"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
)

// buildContainerConfig creates a container.Config from a CreateRequest.
func buildContainerConfig(req CreateRequest) *container.Config {
	config := &container.Config{
		Image:  req.Image.String(),
		Env:    envList(req.Env),
		Labels: req.Labels,
	}

	if len(req.Cmd) > 0 {
		config.Cmd = req.Cmd
	}

	if req.Ports.Len() > 0 {
		config.ExposedPorts = req.Ports.PortSet()
	}

	return config
}

// buildHostConfig creates a container.HostConfig from a CreateRequest.
func buildHostConfig(req CreateRequest) *container.HostConfig {
	hostConfig := &container.HostConfig{}

	if req.Ports.Len() > 0 {
		hostConfig.PortBindings = req.Ports.PortMap(req.HostIP)
	}

	if len(req.Mounts) > 0 {
		mounts := make([]mount.Mount, 0, len(req.Mounts))
		for _, m := range req.Mounts {
			mounts = append(mounts, mount.Mount{
				Type:     mount.TypeBind,
				Source:   m.Source,
				Target:   m.Target,
				ReadOnly: m.ReadOnly,
			})
		}
		hostConfig.Mounts = mounts
	}

	if len(req.Tmpfs) > 0 {
		hostConfig.Tmpfs = maps.Clone(req.Tmpfs)
	}

	return hostConfig
}

// envList converts an env map into sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

// parseDockerTimestamp parses a Docker timestamp string.
func parseDockerTimestamp(ts string) (time.Time, error) {
	// Docker timestamps are in RFC3339Nano format
	return time.Parse(time.RFC3339Nano, ts)
}
