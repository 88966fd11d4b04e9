package engine

import (
	"strings"
	"time"

	"github.com/docker/docker/api/types"
)

// Health statuses reported by the engine.
const (
	HealthStarting  = types.Starting
	HealthHealthy   = types.Healthy
	HealthUnhealthy = types.Unhealthy
)

// State is a point-in-time snapshot of a container. It is not refreshed;
// inspect again to get a newer one.
type State struct {
	ID      string
	Name    string
	Running bool
	Status  string

	// Health is the health check status, empty when the container has no
	// health check.
	Health         string
	HasHealthCheck bool

	ExitCode  int
	StartedAt time.Time
}

// IsHealthy reports whether the last health check passed.
func (s State) IsHealthy() bool {
	return s.Health == HealthHealthy
}

// stateFromInspect builds a State from an inspect response.
func stateFromInspect(resp types.ContainerJSON) State {
	var s State

	if resp.ContainerJSONBase != nil {
		s.ID = resp.ID
		// Docker container names start with "/"
		s.Name = strings.TrimPrefix(resp.Name, "/")

		if st := resp.State; st != nil {
			s.Running = st.Running
			s.Status = st.Status
			s.ExitCode = st.ExitCode
			if st.Health != nil {
				s.Health = st.Health.Status
				s.HasHealthCheck = true
			}
			if started, err := parseDockerTimestamp(st.StartedAt); err == nil {
				s.StartedAt = started
			}
		}
	}

	if resp.Config != nil && resp.Config.Healthcheck != nil {
		test := resp.Config.Healthcheck.Test
		if len(test) > 0 && test[0] != "NONE" {
			s.HasHealthCheck = true
		}
	}

	return s
}
