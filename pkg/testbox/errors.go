package testbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
)

// ErrStopped is returned by operations on a container that was stopped.
var ErrStopped = errors.New("testbox: container is stopped")

// BuildVerificationError reports that the engine accepted a build but the
// image is not listed afterwards.
type BuildVerificationError struct {
	Image image.Reference
}

func (e *BuildVerificationError) Error() string {
	return fmt.Sprintf("image %s was built but is not listed by the engine", e.Image)
}

// StartError reports a Start that failed after the container was created.
// The container is left in place; Cleanup stops and removes it.
type StartError struct {
	ContainerID string
	Err         error

	engine engine.Engine
}

func (e *StartError) Error() string {
	return fmt.Sprintf("container %s: %v", shortID(e.ContainerID), e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Cleanup stops and removes the container. Removal is attempted even when
// stopping fails.
func (e *StartError) Cleanup(ctx context.Context, opts ...StopOption) error {
	o := newStopOptions(opts)
	stopErr := e.engine.Stop(ctx, e.ContainerID, o.timeout)
	removeErr := e.engine.Remove(ctx, e.ContainerID, o.removeVolumes)
	return errors.Join(stopErr, removeErr)
}
