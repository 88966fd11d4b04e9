package ports

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol is a transport protocol a port is published for.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// MaxPort is the largest valid port number.
const MaxPort = 65535

// Port is a port number with its protocol.
type Port struct {
	Number   int
	Protocol Protocol
}

// TCP returns a tcp port.
func TCP(n int) Port {
	return Port{Number: n, Protocol: ProtocolTCP}
}

// UDP returns a udp port.
func UDP(n int) Port {
	return Port{Number: n, Protocol: ProtocolUDP}
}

// Parse parses a port string like "80", "80/tcp" or "53/udp".
func Parse(s string) (Port, error) {
	s = strings.TrimSpace(s)

	number, proto, found := strings.Cut(s, "/")
	p := Port{Protocol: ProtocolTCP}
	if found {
		p.Protocol = Protocol(strings.ToLower(strings.TrimSpace(proto)))
	}

	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil {
		return Port{}, fmt.Errorf("invalid port: %s", s)
	}
	p.Number = n

	if err := p.Validate(); err != nil {
		return Port{}, err
	}
	return p, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Port {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate checks the number is in 1-65535 and the protocol is known.
func (p Port) Validate() error {
	if p.Number < 1 || p.Number > MaxPort {
		return fmt.Errorf("port %d out of range 1-%d", p.Number, MaxPort)
	}
	switch p.normalize().Protocol {
	case ProtocolTCP, ProtocolUDP:
		return nil
	default:
		return fmt.Errorf("unsupported protocol %q for port %d", p.Protocol, p.Number)
	}
}

// String returns the port as "number/protocol".
func (p Port) String() string {
	p = p.normalize()
	return fmt.Sprintf("%d/%s", p.Number, p.Protocol)
}

// normalize fills in the default protocol.
func (p Port) normalize() Port {
	if p.Protocol == "" {
		p.Protocol = ProtocolTCP
	}
	return p
}
