package testbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
	"github.com/rickgorman/testbox/pkg/ports"
	"github.com/rickgorman/testbox/pkg/wait"
)

var (
	redis     = image.MustParse("redis:7")
	quiet     = log.New(io.Discard)
	readyNow  = wait.StrategyFunc(func(context.Context, wait.Container, engine.State, *ports.Bound) (bool, error) { return true, nil })
	neverDone = wait.StrategyFunc(func(context.Context, wait.Container, engine.State, *ports.Bound) (bool, error) { return false, nil })
)

func newBuilder(eng engine.Engine) *Builder {
	return New(eng, redis).
		WithLogger(quiet).
		WithAllocator(ports.NewAllocator().WithAddress("127.0.0.1")).
		WithWaitStrategy(readyNow)
}

func TestStartPullsOnlyWhenAbsent(t *testing.T) {
	tests := []struct {
		name     string
		local    []image.Reference
		wantPull bool
	}{
		{"absent", nil, true},
		{"other tag present", []image.Reference{image.MustParse("redis:6")}, true},
		{"present", []image.Reference{image.MustParse("docker.io/library/redis:7")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newFakeEngine()
			eng.images = tt.local

			c, err := newBuilder(eng).Start(context.Background())
			require.NoError(t, err)
			require.NotNil(t, c)

			if tt.wantPull {
				assert.Equal(t, 1, eng.count("pull"))
			} else {
				assert.Zero(t, eng.count("pull"))
			}
		})
	}
}

func TestStartSequence(t *testing.T) {
	eng := newFakeEngine()

	_, err := newBuilder(eng).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "pull", "create", "start", "inspect"}, eng.ops())
}

func TestStartCreateRequest(t *testing.T) {
	eng := newFakeEngine()
	dir := t.TempDir()

	c, err := newBuilder(eng).
		WithName("cache").
		WithCmd("redis-server", "--appendonly", "yes").
		WithEnv("A", "1").
		WithEnvMap(map[string]string{"B": "2", "A": "3"}).
		WithTmpFs(map[string]string{"/data": "rw,size=64m"}).
		WithBindMount(dir, "/conf", "ro").
		WithBindMount(dir, "/scratch").
		WithLabel("team", "storage").
		WithExposedPorts(ports.TCP(6379), ports.Port{Number: 6379}, ports.UDP(6379)).
		Start(context.Background())
	require.NoError(t, err)

	require.Len(t, eng.creates, 1)
	req := eng.creates[0]

	assert.Equal(t, redis, req.Image)
	assert.Equal(t, "cache", req.Name)
	assert.Equal(t, []string{"redis-server", "--appendonly", "yes"}, req.Cmd)
	assert.Equal(t, map[string]string{"A": "3", "B": "2"}, req.Env)
	assert.Equal(t, map[string]string{"/data": "rw,size=64m"}, req.Tmpfs)
	assert.Equal(t, []engine.BindMount{
		{Source: dir, Target: "/conf", ReadOnly: true},
		{Source: dir, Target: "/scratch"},
	}, req.Mounts)
	assert.Equal(t, "storage", req.Labels["team"])
	assert.Equal(t, "true", req.Labels[LabelManaged])
	assert.Equal(t, "127.0.0.1", req.HostIP)

	assert.Equal(t, []ports.Port{ports.TCP(6379), ports.UDP(6379)}, req.Ports.Internal(), "duplicates are dropped")

	tcp, err := c.MappedPort(ports.TCP(6379))
	require.NoError(t, err)
	udp, err := c.MappedPort(ports.UDP(6379))
	require.NoError(t, err)
	assert.Equal(t, ports.ProtocolTCP, tcp.Protocol)
	assert.Equal(t, ports.ProtocolUDP, udp.Protocol)

	// A port without protocol means tcp.
	same, err := c.MappedPort(ports.Port{Number: 6379})
	require.NoError(t, err)
	assert.Equal(t, tcp, same)

	_, err = c.MappedPort(ports.TCP(80))
	var notBound *ports.NotBoundError
	assert.ErrorAs(t, err, &notBound)
}

func TestStartHandleAccessors(t *testing.T) {
	eng := newFakeEngine()
	eng.state.Name = "brave_turing"

	c, err := newBuilder(eng).Start(context.Background())
	require.NoError(t, err)

	assert.Len(t, c.ID(), 64)
	assert.Equal(t, "brave_turing", c.Name())
	assert.Equal(t, "127.0.0.1", c.Host())
	assert.Equal(t, redis, c.Image())
}

func TestStartInvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		builder func(*Builder) *Builder
	}{
		{"bad mount mode", func(b *Builder) *Builder { return b.WithBindMount("/src", "/dst", "rx") }},
		{"bad port", func(b *Builder) *Builder { return b.WithExposedPorts(ports.TCP(70000)) }},
		{"missing env file", func(b *Builder) *Builder { return b.WithEnvFile(filepath.Join(t.TempDir(), "nope.env")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newFakeEngine()

			c, err := tt.builder(newBuilder(eng)).Start(context.Background())

			assert.Error(t, err)
			assert.Nil(t, c)
			assert.Empty(t, eng.ops(), "nothing reaches the engine")
		})
	}
}

func TestWithEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nUSER=app\nexport PASSWORD=\"s3cret\"\n"), 0o600))

	eng := newFakeEngine()
	_, err := newBuilder(eng).WithEnv("USER", "root").WithEnvFile(path).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"USER": "app", "PASSWORD": "s3cret"}, eng.creates[0].Env)
}

func TestStartFailuresReturnNoHandle(t *testing.T) {
	for _, op := range []string{"list", "pull", "create", "start", "inspect"} {
		t.Run(op, func(t *testing.T) {
			eng := newFakeEngine()
			cause := eng.failOn(op)

			c, err := newBuilder(eng).Start(context.Background())

			assert.Nil(t, c)
			assert.ErrorIs(t, err, cause)
			var engineErr *engine.Error
			require.ErrorAs(t, err, &engineErr)
			assert.Equal(t, op, engineErr.Op)

			ops := eng.ops()
			assert.Equal(t, op, ops[len(ops)-1], "no engine call after the failure")
		})
	}
}

func TestStartStrategyErrorReturnsNoHandle(t *testing.T) {
	eng := newFakeEngine()

	c, err := newBuilder(eng).
		WithWaitStrategy(wait.ForHealthy()).
		Start(context.Background())

	assert.Nil(t, c)
	assert.ErrorIs(t, err, wait.ErrNoHealthCheck)
}

func TestStartTimeoutLeavesContainer(t *testing.T) {
	eng := newFakeEngine()

	start := time.Now()
	c, err := newBuilder(eng).
		WithWaitStrategy(neverDone).
		WithStartupTimeout(150 * time.Millisecond).
		Start(context.Background())

	assert.Nil(t, c)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	var timeoutErr *wait.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, time.Since(start), time.Second)

	assert.Zero(t, eng.count("stop"))
	assert.Zero(t, eng.count("remove"))
}

func TestStartPortAllocationFailure(t *testing.T) {
	eng := newFakeEngine()

	c, err := newBuilder(eng).
		WithAllocator(ports.NewAllocator().WithAddress("256.0.0.1")).
		WithExposedPorts(ports.TCP(80)).
		Start(context.Background())

	assert.Nil(t, c)
	var allocErr *ports.AllocationError
	assert.ErrorAs(t, err, &allocErr)
	assert.Zero(t, eng.count("create"))
}

func TestStartDefaultStrategyUsesContainer(t *testing.T) {
	eng := newFakeEngine()
	eng.exitCode = 1

	c, err := New(eng, redis).
		WithLogger(quiet).
		WithExposedPorts(ports.TCP(6379)).
		WithStartupTimeout(300 * time.Millisecond).
		Start(context.Background())

	assert.Nil(t, c)
	assert.ErrorIs(t, err, wait.ErrTimeout, "nothing listens on the published port")
}

func TestStrategySeesContainer(t *testing.T) {
	eng := newFakeEngine()
	eng.logs = "booting\nready\n"

	c, err := newBuilder(eng).
		WithWaitStrategy(wait.ForLog("ready")).
		Start(context.Background())

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 1, eng.count("logs"))
}

func TestStop(t *testing.T) {
	eng := newFakeEngine()
	c, err := newBuilder(eng).WithExposedPorts(ports.TCP(80)).Start(context.Background())
	require.NoError(t, err)

	stopped, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c.ID(), stopped.ID)
	assert.Equal(t, redis, stopped.Image)
	assert.Equal(t, []time.Duration{DefaultStopTimeout}, eng.stops)
	assert.Equal(t, []bool{false}, eng.removes)

	_, err = c.MappedPort(ports.TCP(80))
	assert.ErrorIs(t, err, ErrStopped)
	_, err = c.Exec(context.Background(), "true")
	assert.ErrorIs(t, err, ErrStopped)
	_, err = c.Logs(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	_, err = c.Inspect(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	_, err = c.Ports()
	assert.ErrorIs(t, err, ErrStopped)

	_, err = c.Stop(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 1, eng.count("stop"))

	assert.NotEmpty(t, c.ID())
	assert.Equal(t, "127.0.0.1", c.Host())
}

func TestStopOptions(t *testing.T) {
	eng := newFakeEngine()
	c, err := newBuilder(eng).Start(context.Background())
	require.NoError(t, err)

	_, err = c.Stop(context.Background(), StopTimeout(time.Second), RemoveVolumes(true))
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second}, eng.stops)
	assert.Equal(t, []bool{true}, eng.removes)
}

func TestStopFailureKeepsHandle(t *testing.T) {
	eng := newFakeEngine()
	c, err := newBuilder(eng).Start(context.Background())
	require.NoError(t, err)

	cause := eng.failOn("stop")
	_, err = c.Stop(context.Background())
	assert.ErrorIs(t, err, cause)

	_, err = c.Exec(context.Background(), "true")
	assert.NoError(t, err)
}

func TestExecBeforeStop(t *testing.T) {
	eng := newFakeEngine()
	eng.exitCode = 3
	c, err := newBuilder(eng).Start(context.Background())
	require.NoError(t, err)

	result, err := c.Exec(context.Background(), "sh", "-c", "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestConcurrentStart(t *testing.T) {
	eng := newFakeEngine()
	b := newBuilder(eng).WithExposedPorts(ports.TCP(80), ports.TCP(443))

	const n = 8
	containers := make([]*Container, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			c, err := b.Start(context.Background())
			containers[i] = c
			return err
		})
	}
	require.NoError(t, g.Wait())

	ids := map[string]bool{}
	for _, c := range containers {
		require.NotNil(t, c)
		ids[c.ID()] = true
	}
	assert.Len(t, ids, n)
	assert.Equal(t, n, eng.count("create"))
}

func TestBuilderMutationAfterStart(t *testing.T) {
	eng := newFakeEngine()
	b := newBuilder(eng).WithEnv("A", "1")

	var checks atomic.Int32
	gate := make(chan struct{})
	slow := wait.StrategyFunc(func(context.Context, wait.Container, engine.State, *ports.Bound) (bool, error) {
		if checks.Add(1) == 1 {
			close(gate)
		}
		return true, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := b.WithWaitStrategy(slow).Start(context.Background())
		done <- err
	}()
	<-gate
	b.WithEnv("A", "2")
	require.NoError(t, <-done)

	_, err := b.Start(context.Background())
	require.NoError(t, err)

	require.Len(t, eng.creates, 2)
	assert.Equal(t, "1", eng.creates[0].Env["A"])
	assert.Equal(t, "2", eng.creates[1].Env["A"])
}

func TestStartContextCanceled(t *testing.T) {
	eng := newFakeEngine()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	c, err := newBuilder(eng).WithWaitStrategy(neverDone).Start(ctx)

	assert.Nil(t, c)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStartErrorCarriesContainerID(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeEngine) *Builder
		check func(t *testing.T, err error)
	}{
		{
			name: "start",
			setup: func(eng *fakeEngine) *Builder {
				eng.failOn("start")
				return newBuilder(eng)
			},
			check: func(t *testing.T, err error) {
				var engineErr *engine.Error
				assert.ErrorAs(t, err, &engineErr)
			},
		},
		{
			name: "inspect",
			setup: func(eng *fakeEngine) *Builder {
				eng.failOn("inspect")
				return newBuilder(eng)
			},
			check: func(t *testing.T, err error) {
				var engineErr *engine.Error
				assert.ErrorAs(t, err, &engineErr)
			},
		},
		{
			name: "wait timeout",
			setup: func(eng *fakeEngine) *Builder {
				return newBuilder(eng).WithWaitStrategy(neverDone).WithStartupTimeout(50 * time.Millisecond)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, wait.ErrTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newFakeEngine()

			c, err := tt.setup(eng).Start(context.Background())

			assert.Nil(t, c)
			var startErr *StartError
			require.ErrorAs(t, err, &startErr)
			assert.Equal(t, fmt.Sprintf("%064d", 1), startErr.ContainerID)
			tt.check(t, err)
		})
	}
}

func TestStartErrorOnlyAfterCreate(t *testing.T) {
	for _, op := range []string{"list", "pull", "create"} {
		t.Run(op, func(t *testing.T) {
			eng := newFakeEngine()
			eng.failOn(op)

			_, err := newBuilder(eng).Start(context.Background())

			var startErr *StartError
			assert.False(t, errors.As(err, &startErr), "nothing to clean up before create")
		})
	}
}

func TestStartErrorCleanup(t *testing.T) {
	eng := newFakeEngine()

	_, err := newBuilder(eng).
		WithWaitStrategy(neverDone).
		WithStartupTimeout(50 * time.Millisecond).
		Start(context.Background())

	var startErr *StartError
	require.ErrorAs(t, err, &startErr)

	require.NoError(t, startErr.Cleanup(context.Background(), StopTimeout(time.Second), RemoveVolumes(true)))
	assert.Equal(t, []time.Duration{time.Second}, eng.stops)
	assert.Equal(t, []bool{true}, eng.removes)
}

func TestStartErrorCleanupRemovesWhenStopFails(t *testing.T) {
	eng := newFakeEngine()
	eng.failOn("start")

	_, err := newBuilder(eng).Start(context.Background())
	var startErr *StartError
	require.ErrorAs(t, err, &startErr)

	cause := eng.failOn("stop")
	err = startErr.Cleanup(context.Background())

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, eng.count("remove"))
}
