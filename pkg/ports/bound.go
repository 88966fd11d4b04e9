package ports

import (
	"fmt"
	"strconv"

	"github.com/docker/go-connections/nat"
)

// Binding pairs a container port with the host port published for it.
type Binding struct {
	Internal Port
	Host     Port
}

// Bound maps internal container ports to host ports. It is built once by an
// Allocator and never changes afterwards, so it can be shared freely.
type Bound struct {
	bindings []Binding
	index    map[Port]int
}

func newBound(bindings []Binding) *Bound {
	b := &Bound{
		bindings: bindings,
		index:    make(map[Port]int, len(bindings)),
	}
	for i, binding := range bindings {
		b.index[binding.Internal] = i
	}
	return b
}

// Fixed builds a Bound from known bindings, for ports published outside an
// Allocator. Internal and host ports must each be distinct.
func Fixed(bindings ...Binding) (*Bound, error) {
	internalSeen := make(map[Port]bool, len(bindings))
	hostSeen := make(map[Port]bool, len(bindings))
	out := make([]Binding, 0, len(bindings))

	for _, b := range bindings {
		b.Internal = b.Internal.normalize()
		b.Host = b.Host.normalize()
		if err := b.Internal.Validate(); err != nil {
			return nil, err
		}
		if err := b.Host.Validate(); err != nil {
			return nil, err
		}
		if internalSeen[b.Internal] {
			return nil, fmt.Errorf("port %s bound twice", b.Internal)
		}
		if hostSeen[b.Host] {
			return nil, fmt.Errorf("host port %s used twice", b.Host)
		}
		internalSeen[b.Internal] = true
		hostSeen[b.Host] = true
		out = append(out, b)
	}

	return newBound(out), nil
}

// Len returns the number of bindings.
func (b *Bound) Len() int {
	if b == nil {
		return 0
	}
	return len(b.bindings)
}

// Bindings returns a copy of the bindings in request order.
func (b *Bound) Bindings() []Binding {
	if b == nil {
		return nil
	}
	out := make([]Binding, len(b.bindings))
	copy(out, b.bindings)
	return out
}

// Each calls fn for every binding in request order.
func (b *Bound) Each(fn func(internal, host Port)) {
	if b == nil {
		return
	}
	for _, binding := range b.bindings {
		fn(binding.Internal, binding.Host)
	}
}

// Internal returns the requested container ports in request order.
func (b *Bound) Internal() []Port {
	if b == nil {
		return nil
	}
	out := make([]Port, 0, len(b.bindings))
	for _, binding := range b.bindings {
		out = append(out, binding.Internal)
	}
	return out
}

// Get returns the host port bound for internal.
func (b *Bound) Get(internal Port) (Port, error) {
	internal = internal.normalize()
	if b != nil {
		if i, ok := b.index[internal]; ok {
			return b.bindings[i].Host, nil
		}
	}
	return Port{}, &NotBoundError{Port: internal}
}

// PortSet returns the internal ports as a nat.PortSet for the exposed-ports
// section of a container config.
func (b *Bound) PortSet() nat.PortSet {
	set := make(nat.PortSet, b.Len())
	b.Each(func(internal, _ Port) {
		set[natPort(internal)] = struct{}{}
	})
	return set
}

// PortMap returns the bindings as a nat.PortMap publishing every internal
// port on hostIP at its allocated host port.
func (b *Bound) PortMap(hostIP string) nat.PortMap {
	portMap := make(nat.PortMap, b.Len())
	b.Each(func(internal, host Port) {
		portMap[natPort(internal)] = []nat.PortBinding{
			{
				HostIP:   hostIP,
				HostPort: strconv.Itoa(host.Number),
			},
		}
	})
	return portMap
}

func natPort(p Port) nat.Port {
	return nat.Port(p.String())
}
