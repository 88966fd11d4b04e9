package engine

import (
	"fmt"

	"github.com/docker/docker/client"
)

// Error is a failure reported by the container engine.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// IsNotFound reports whether err means the container or image does not exist.
func IsNotFound(err error) bool {
	return client.IsErrNotFound(err)
}
