// Package ports claims free host ports for container ports.
//
// The package provides three pieces:
//
// 1. Port (port.go)
//   - Port number plus protocol, tcp by default
//   - Parsing of "80", "80/tcp" and "53/udp"
//
// 2. Allocator (allocator.go)
//   - Claims one free ephemeral host port per requested container port
//   - All or nothing: either every port is bound or Bind fails
//
// 3. Bound (bound.go)
//   - Immutable internal to host port map, ordered as requested
//   - Lookups of ports that were never requested fail with NotBoundError
//
// Basic usage:
//
//	bound, err := ports.NewAllocator().Bind([]ports.Port{ports.TCP(80), ports.TCP(443)})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	host, err := bound.Get(ports.TCP(80))
//
// Allocation is best effort. A probe socket is bound to port 0, the number the
// OS assigned is read back and the socket is released before the container
// engine publishes the port. Another process can grab the port in between.
// That window is inherent to ephemeral port allocation and is not guarded
// against here.
package ports
