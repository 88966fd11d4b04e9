package wait

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/ports"
)

const defaultDialTimeout = time.Second

// HostPortStrategy waits until published TCP ports accept connections from
// the host.
type HostPortStrategy struct {
	ports        []ports.Port
	dialTimeout  time.Duration
	pollInterval time.Duration
}

// ForListeningPort waits for the given container ports, or every bound TCP
// port when none are given.
func ForListeningPort(p ...ports.Port) *HostPortStrategy {
	return &HostPortStrategy{ports: p, dialTimeout: defaultDialTimeout}
}

// WithDialTimeout bounds a single connection attempt.
func (s *HostPortStrategy) WithDialTimeout(d time.Duration) *HostPortStrategy {
	s.dialTimeout = d
	return s
}

// WithPollInterval sets the pause between attempts.
func (s *HostPortStrategy) WithPollInterval(d time.Duration) *HostPortStrategy {
	s.pollInterval = d
	return s
}

// PollInterval returns the pause between attempts.
func (s *HostPortStrategy) PollInterval() time.Duration {
	return interval(s.pollInterval)
}

// CheckReady dials every port. Refused or timed out connections mean not
// ready yet.
func (s *HostPortStrategy) CheckReady(ctx context.Context, c Container, _ engine.State, bound *ports.Bound) (bool, error) {
	dialer := net.Dialer{Timeout: s.dialTimeout}

	for _, internal := range tcpPorts(s.ports, bound) {
		host, err := bound.Get(internal)
		if err != nil {
			return false, err
		}

		address := net.JoinHostPort(c.Host(), strconv.Itoa(host.Number))
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false, nil
		}
		conn.Close()
	}

	return true, nil
}

func (s *HostPortStrategy) String() string {
	return "listening ports " + describePorts(s.ports)
}

// tcpPorts returns requested, or the bound TCP ports when requested is empty.
func tcpPorts(requested []ports.Port, bound *ports.Bound) []ports.Port {
	candidates := requested
	if len(candidates) == 0 {
		candidates = bound.Internal()
	}

	var out []ports.Port
	for _, p := range candidates {
		if p.Protocol == "" || p.Protocol == ports.ProtocolTCP {
			out = append(out, p)
		}
	}
	return out
}

func describePorts(p []ports.Port) string {
	if len(p) == 0 {
		return "(all exposed)"
	}
	names := make([]string, len(p))
	for i, port := range p {
		names[i] = port.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(names, " "))
}
