// Package engine is the boundary between testbox and the container engine.
//
// The package provides:
//
// 1. The Engine interface (engine.go)
//   - Everything the orchestrator needs from an engine: pull, build, list
//     images, create, start, stop, remove, inspect, exec and logs
//   - Plain request and result types so callers never touch SDK types
//
// 2. A Docker implementation (docker.go, images.go, lifecycle.go, exec.go)
//   - Wraps the Docker SDK client
//   - Resolves the host address published ports are reachable on
//
// 3. Container state snapshots (state.go)
//   - State is parsed from a single inspect call and never refreshed
//
// 4. Build context packaging (archive.go)
//   - Tars a directory into a build context
//
// Every failure coming out of the Docker implementation is an *Error naming
// the operation that failed. The engine never retries a call.
//
// Basic usage:
//
//	docker, err := engine.NewDocker()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer docker.Close()
//
//	info, err := docker.Info(ctx)
//
// A single Docker value is safe for concurrent use and is meant to be
// created once and shared.
package engine
