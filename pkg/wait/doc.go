// Package wait decides when a started container is ready for use.
//
// A Strategy is a readiness predicate. UntilReady polls it until it reports
// ready or the startup timeout elapses:
//
//	Polling --ready--> Ready
//	Polling --timeout--> TimedOut
//
// Both outcomes are final. Between attempts the loop sleeps for the
// strategy's poll interval and it never sleeps past the deadline. A
// predicate that returns an error stops the loop at once: errors mean the
// strategy is misconfigured or the engine failed, not that the container is
// still starting.
//
// Available strategies:
//   - ForListeningPort: published ports accept TCP connections from the host
//   - ForInternalPort:  ports are listening inside the container
//   - ForAll:           every given strategy is ready
//   - ForLog:           container output contains a pattern
//   - ForHTTP:          an HTTP endpoint answers with an accepted status
//   - ForHealthy:       the engine reports the health check as healthy
//
// Default combines ForListeningPort and ForInternalPort.
//
// Strategies keep no state between calls, so one value can be shared by any
// number of containers starting in parallel.
package wait
