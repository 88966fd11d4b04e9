package wait

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/ports"
)

const (
	// DefaultTimeout bounds UntilReady when no timeout is given.
	DefaultTimeout = 60 * time.Second
	// DefaultPollInterval is the pause between two readiness checks.
	DefaultPollInterval = 100 * time.Millisecond

	// finalAttemptShare is the fraction (1/n) of the time left that is
	// reserved for the last attempt before the deadline.
	finalAttemptShare = 4
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("wait: timed out")

// Container is the started container a strategy probes.
type Container interface {
	// Host is the address the container's published ports are reachable on.
	Host() string
	Exec(ctx context.Context, cmd []string) (engine.ExecResult, error)
	Logs(ctx context.Context) (io.ReadCloser, error)
	Inspect(ctx context.Context) (engine.State, error)
}

// Strategy reports whether a container is ready.
type Strategy interface {
	// CheckReady evaluates the readiness predicate once. It returns false
	// with a nil error while the container is not ready yet.
	CheckReady(ctx context.Context, c Container, state engine.State, bound *ports.Bound) (bool, error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx context.Context, c Container, state engine.State, bound *ports.Bound) (bool, error)

// CheckReady calls f.
func (f StrategyFunc) CheckReady(ctx context.Context, c Container, state engine.State, bound *ports.Bound) (bool, error) {
	return f(ctx, c, state, bound)
}

// TimeoutError reports that a strategy never became ready in time.
type TimeoutError struct {
	Strategy string
	Timeout  time.Duration
	Elapsed  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s not ready after %s (%d attempts, timeout %s)",
		e.Strategy, e.Elapsed.Round(time.Millisecond), e.Attempts, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// UntilReady polls s until it reports ready, fails, or timeout elapses.
// A non-positive timeout means DefaultTimeout. When less than one poll
// interval is left, the loop makes a last attempt before the deadline
// instead of sleeping through it.
func UntilReady(ctx context.Context, s Strategy, c Container, state engine.State, bound *ports.Bound, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	deadline := start.Add(timeout)
	interval := pollInterval(s)

	checkCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	timedOut := func(attempts int) error {
		return &TimeoutError{
			Strategy: describe(s),
			Timeout:  timeout,
			Elapsed:  time.Since(start),
			Attempts: attempts,
		}
	}

	last := false
	for attempt := 1; ; attempt++ {
		ready, err := s.CheckReady(checkCtx, c, state, bound)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if checkCtx.Err() != nil {
				return timedOut(attempt)
			}
			return err
		}
		if ready {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || last {
			if err := sleep(ctx, remaining); err != nil {
				return err
			}
			return timedOut(attempt)
		}

		pause := interval
		if remaining <= interval {
			// Keep part of what is left for one last attempt.
			pause = remaining - remaining/finalAttemptShare
			last = true
		}
		if err := sleep(ctx, pause); err != nil {
			return err
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pollInterval returns the strategy's interval if it sets one.
func pollInterval(s Strategy) time.Duration {
	if p, ok := s.(interface{ PollInterval() time.Duration }); ok {
		if d := p.PollInterval(); d > 0 {
			return d
		}
	}
	return DefaultPollInterval
}

func describe(s Strategy) string {
	if stringer, ok := s.(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprintf("%T", s)
}

// interval returns d, or DefaultPollInterval when d is unset.
func interval(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return DefaultPollInterval
}
