package wait

import (
	"context"
	"strings"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/ports"
)

// AllStrategy is ready when every one of its strategies is ready.
type AllStrategy struct {
	strategies   []Strategy
	pollInterval time.Duration
}

// ForAll combines strategies with a logical AND.
func ForAll(strategies ...Strategy) *AllStrategy {
	return &AllStrategy{strategies: strategies}
}

// Default returns the strategy used when none is configured: published ports
// accept connections and are listening inside the container.
func Default() Strategy {
	return ForAll(ForListeningPort(), ForInternalPort())
}

// WithPollInterval sets the pause between attempts.
func (s *AllStrategy) WithPollInterval(d time.Duration) *AllStrategy {
	s.pollInterval = d
	return s
}

// PollInterval returns the pause between attempts.
func (s *AllStrategy) PollInterval() time.Duration {
	return interval(s.pollInterval)
}

// CheckReady evaluates the strategies in order and stops at the first one
// that is not ready.
func (s *AllStrategy) CheckReady(ctx context.Context, c Container, state engine.State, bound *ports.Bound) (bool, error) {
	for _, strategy := range s.strategies {
		ready, err := strategy.CheckReady(ctx, c, state, bound)
		if err != nil || !ready {
			return false, err
		}
	}
	return true, nil
}

func (s *AllStrategy) String() string {
	names := make([]string, len(s.strategies))
	for i, strategy := range s.strategies {
		names[i] = describe(strategy)
	}
	return "all of (" + strings.Join(names, ", ") + ")"
}
