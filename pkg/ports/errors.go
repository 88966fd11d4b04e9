package ports

import "fmt"

// AllocationError reports that a requested port could not be bound to a free
// host port.
type AllocationError struct {
	Port Port
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to allocate host port for %s: %v", e.Port, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// NotBoundError reports a lookup of a port that was never requested.
type NotBoundError struct {
	Port Port
}

func (e *NotBoundError) Error() string {
	return fmt.Sprintf("port %s is not bound", e.Port)
}
