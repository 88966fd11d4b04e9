package wait

import (
	"context"
	"errors"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/ports"
)

// ErrNoHealthCheck is returned by ForHealthy for containers whose image
// declares no health check.
var ErrNoHealthCheck = errors.New("wait: container has no health check")

// HealthStrategy waits until the engine reports the container healthy.
type HealthStrategy struct {
	pollInterval time.Duration
}

// ForHealthy waits for the health check to pass.
func ForHealthy() *HealthStrategy {
	return &HealthStrategy{}
}

// WithPollInterval sets the pause between attempts.
func (s *HealthStrategy) WithPollInterval(d time.Duration) *HealthStrategy {
	s.pollInterval = d
	return s
}

// PollInterval returns the pause between attempts.
func (s *HealthStrategy) PollInterval() time.Duration {
	return interval(s.pollInterval)
}

// CheckReady inspects the container for its current health status.
func (s *HealthStrategy) CheckReady(ctx context.Context, c Container, state engine.State, _ *ports.Bound) (bool, error) {
	if !state.HasHealthCheck {
		return false, ErrNoHealthCheck
	}

	current, err := c.Inspect(ctx)
	if err != nil {
		return false, err
	}
	if !current.HasHealthCheck {
		return false, ErrNoHealthCheck
	}

	return current.IsHealthy(), nil
}

func (s *HealthStrategy) String() string {
	return "health check"
}
