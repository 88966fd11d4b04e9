package ports

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// DefaultBindAddress is where probe sockets are opened. It matches the
// address the engine publishes ports on by default.
const DefaultBindAddress = "0.0.0.0"

// probeFunc opens a socket on an OS assigned port and reports the number.
type probeFunc func(proto Protocol, address string) (io.Closer, int, error)

// Allocator claims free host ports.
type Allocator struct {
	address string
	probe   probeFunc
}

// NewAllocator returns an allocator probing on DefaultBindAddress.
func NewAllocator() *Allocator {
	return &Allocator{address: DefaultBindAddress, probe: probeSocket}
}

// WithAddress returns a copy of the allocator probing on address.
func (a *Allocator) WithAddress(address string) *Allocator {
	clone := *a
	clone.address = address
	return &clone
}

// Address returns the address ports are probed on.
func (a *Allocator) Address() string {
	return a.address
}

// Bind claims one free host port for every requested port, in order.
// Either every port is bound or an *AllocationError is returned.
func (a *Allocator) Bind(requested []Port) (*Bound, error) {
	bindings := make([]Binding, 0, len(requested))
	requestedSeen := make(map[Port]bool, len(requested))
	hostSeen := make(map[Port]bool, len(requested))

	// Probes stay open until every port is claimed so the OS cannot hand
	// out the same number twice within one call.
	probes := make([]io.Closer, 0, len(requested))
	defer func() {
		for _, p := range probes {
			_ = p.Close()
		}
	}()

	for _, internal := range requested {
		internal = internal.normalize()

		if err := internal.Validate(); err != nil {
			return nil, &AllocationError{Port: internal, Err: err}
		}
		if requestedSeen[internal] {
			return nil, &AllocationError{Port: internal, Err: errors.New("port requested more than once")}
		}
		requestedSeen[internal] = true

		closer, number, err := a.probe(internal.Protocol, a.address)
		if err != nil {
			return nil, &AllocationError{Port: internal, Err: err}
		}
		probes = append(probes, closer)

		host := Port{Number: number, Protocol: internal.Protocol}
		if hostSeen[host] {
			return nil, &AllocationError{Port: internal, Err: fmt.Errorf("host port %s claimed twice", host)}
		}
		hostSeen[host] = true

		bindings = append(bindings, Binding{Internal: internal, Host: host})
	}

	return newBound(bindings), nil
}

// probeSocket binds a socket to port 0 on address.
func probeSocket(proto Protocol, address string) (io.Closer, int, error) {
	hostPort := net.JoinHostPort(address, "0")

	switch proto {
	case ProtocolUDP:
		conn, err := net.ListenPacket("udp", hostPort)
		if err != nil {
			return nil, 0, err
		}
		return conn, conn.LocalAddr().(*net.UDPAddr).Port, nil
	default:
		listener, err := net.Listen("tcp", hostPort)
		if err != nil {
			return nil, 0, err
		}
		return listener, listener.Addr().(*net.TCPAddr).Port, nil
	}
}
