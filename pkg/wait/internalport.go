package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/ports"
)

// InternalPortStrategy waits until TCP ports are listening inside the
// container. It runs a shell probe through exec, so the image needs
// /bin/sh.
type InternalPortStrategy struct {
	ports        []ports.Port
	pollInterval time.Duration
}

// ForInternalPort waits for the given container ports, or every bound TCP
// port when none are given.
func ForInternalPort(p ...ports.Port) *InternalPortStrategy {
	return &InternalPortStrategy{ports: p}
}

// WithPollInterval sets the pause between attempts.
func (s *InternalPortStrategy) WithPollInterval(d time.Duration) *InternalPortStrategy {
	s.pollInterval = d
	return s
}

// PollInterval returns the pause between attempts.
func (s *InternalPortStrategy) PollInterval() time.Duration {
	return interval(s.pollInterval)
}

// CheckReady probes every port inside the container. A non-zero exit code
// means not ready yet.
func (s *InternalPortStrategy) CheckReady(ctx context.Context, c Container, _ engine.State, bound *ports.Bound) (bool, error) {
	for _, p := range tcpPorts(s.ports, bound) {
		result, err := c.Exec(ctx, internalProbe(p.Number))
		if err != nil {
			return false, err
		}
		if result.ExitCode != 0 {
			return false, nil
		}
	}
	return true, nil
}

func (s *InternalPortStrategy) String() string {
	return "internal ports " + describePorts(s.ports)
}

// internalProbe checks the kernel's socket table first and falls back to nc
// and bash's /dev/tcp for images where /proc is restricted.
func internalProbe(port int) []string {
	script := fmt.Sprintf(
		"true && (cat /proc/net/tcp* | awk '{print $2}' | grep -i ':%04x' || nc -vz -w 1 localhost %d || /bin/bash -c '</dev/tcp/localhost/%d')",
		port, port, port,
	)
	return []string{"/bin/sh", "-c", script}
}
