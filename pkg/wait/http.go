package wait

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/ports"
)

const defaultAttemptTimeout = 5 * time.Second

// HTTPStrategy waits until an HTTP endpoint on a published port answers
// with an accepted status.
type HTTPStrategy struct {
	path            string
	port            ports.Port
	method          string
	headers         map[string]string
	statusMatcher   func(status int) bool
	responseMatcher func(body []byte) bool
	attemptTimeout  time.Duration
	pollInterval    time.Duration
	client          *retryablehttp.Client
}

// ForHTTP waits for GET path to return 200. The first bound TCP port is
// used unless WithPort is set.
func ForHTTP(path string) *HTTPStrategy {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	// Retries belong to the poll loop, so the client makes one attempt.
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPStrategy{
		path:           path,
		method:         http.MethodGet,
		statusMatcher:  func(status int) bool { return status == http.StatusOK },
		attemptTimeout: defaultAttemptTimeout,
		client:         client,
	}
}

// WithPort selects the container port the request goes to.
func (s *HTTPStrategy) WithPort(p ports.Port) *HTTPStrategy {
	s.port = p
	return s
}

// WithMethod sets the request method.
func (s *HTTPStrategy) WithMethod(method string) *HTTPStrategy {
	s.method = method
	return s
}

// WithHeaders adds request headers.
func (s *HTTPStrategy) WithHeaders(headers map[string]string) *HTTPStrategy {
	if s.headers == nil {
		s.headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		s.headers[k] = v
	}
	return s
}

// WithStatusCodeMatcher sets which status codes count as ready.
func (s *HTTPStrategy) WithStatusCodeMatcher(match func(status int) bool) *HTTPStrategy {
	s.statusMatcher = match
	return s
}

// WithResponseMatcher additionally requires the body to satisfy match.
func (s *HTTPStrategy) WithResponseMatcher(match func(body []byte) bool) *HTTPStrategy {
	s.responseMatcher = match
	return s
}

// WithAttemptTimeout bounds a single request. It is separate from the
// overall startup timeout.
func (s *HTTPStrategy) WithAttemptTimeout(d time.Duration) *HTTPStrategy {
	s.attemptTimeout = d
	return s
}

// WithPollInterval sets the pause between attempts.
func (s *HTTPStrategy) WithPollInterval(d time.Duration) *HTTPStrategy {
	s.pollInterval = d
	return s
}

// PollInterval returns the pause between attempts.
func (s *HTTPStrategy) PollInterval() time.Duration {
	return interval(s.pollInterval)
}

// CheckReady sends one request. Connection failures and rejected responses
// mean not ready yet.
func (s *HTTPStrategy) CheckReady(ctx context.Context, c Container, _ engine.State, bound *ports.Bound) (bool, error) {
	host, err := s.hostPort(bound)
	if err != nil {
		return false, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(c.Host(), strconv.Itoa(host.Number)), s.path)
	req, err := retryablehttp.NewRequestWithContext(attemptCtx, s.method, url, nil)
	if err != nil {
		return false, err
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	if !s.statusMatcher(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	if s.responseMatcher == nil {
		return true, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil
	}
	return s.responseMatcher(body), nil
}

func (s *HTTPStrategy) hostPort(bound *ports.Bound) (ports.Port, error) {
	if s.port.Number != 0 {
		return bound.Get(s.port)
	}
	candidates := tcpPorts(nil, bound)
	if len(candidates) == 0 {
		return ports.Port{}, errors.New("http wait strategy: container exposes no tcp port")
	}
	return bound.Get(candidates[0])
}

func (s *HTTPStrategy) String() string {
	if s.port.Number != 0 {
		return fmt.Sprintf("http %s %s on %s", s.method, s.path, s.port)
	}
	return fmt.Sprintf("http %s %s", s.method, s.path)
}
