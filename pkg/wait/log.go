package wait

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/ports"
)

// LogStrategy waits until the container's output contains a pattern.
type LogStrategy struct {
	literal      string
	re           *regexp.Regexp
	occurrence   int
	pollInterval time.Duration
}

// ForLog waits for the literal text s in stdout or stderr.
func ForLog(s string) *LogStrategy {
	return &LogStrategy{literal: s, occurrence: 1}
}

// ForLogRegexp waits for a match of re in stdout or stderr.
func ForLogRegexp(re *regexp.Regexp) *LogStrategy {
	return &LogStrategy{re: re, occurrence: 1}
}

// WithOccurrence requires the pattern to appear n times.
func (s *LogStrategy) WithOccurrence(n int) *LogStrategy {
	if n < 1 {
		n = 1
	}
	s.occurrence = n
	return s
}

// WithPollInterval sets the pause between attempts.
func (s *LogStrategy) WithPollInterval(d time.Duration) *LogStrategy {
	s.pollInterval = d
	return s
}

// PollInterval returns the pause between attempts.
func (s *LogStrategy) PollInterval() time.Duration {
	return interval(s.pollInterval)
}

// CheckReady reads everything the container printed since it started and
// counts the matches.
func (s *LogStrategy) CheckReady(ctx context.Context, c Container, _ engine.State, _ *ports.Bound) (bool, error) {
	rc, err := c.Logs(ctx)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	output, err := io.ReadAll(rc)
	if err != nil {
		return false, err
	}

	return s.count(output) >= s.occurrence, nil
}

func (s *LogStrategy) count(output []byte) int {
	if s.re != nil {
		return len(s.re.FindAllIndex(output, -1))
	}
	if s.literal == "" {
		return s.occurrence
	}
	return bytes.Count(output, []byte(s.literal))
}

func (s *LogStrategy) String() string {
	pattern := s.literal
	if s.re != nil {
		pattern = s.re.String()
	}
	if s.occurrence > 1 {
		return fmt.Sprintf("log %q x%d", pattern, s.occurrence)
	}
	return fmt.Sprintf("log %q", pattern)
}
