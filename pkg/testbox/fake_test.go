package testbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
)

// fakeEngine records calls and lets tests inject failures per operation.
type fakeEngine struct {
	mu sync.Mutex

	images  []image.Reference
	calls   []string
	creates []engine.CreateRequest
	builds  []engine.BuildRequest
	// buildContexts holds what each build read from its context.
	buildContexts [][]byte
	stops   []time.Duration
	removes []bool
	nextID  int

	fail map[string]error

	state    engine.State
	exitCode int
	logs     string

	// buildLists controls whether a built image shows up in ListImages.
	buildLists bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		fail:       map[string]error{},
		state:      engine.State{Running: true, Status: "running", Name: "fake"},
		buildLists: true,
	}
}

func (f *fakeEngine) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err, ok := f.fail[op]; ok {
		return &engine.Error{Op: op, Err: err}
	}
	return nil
}

func (f *fakeEngine) failOn(op string) error {
	err := errors.New(op + " failed")
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
	return err
}

func (f *fakeEngine) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) count(op string) int {
	n := 0
	for _, c := range f.ops() {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeEngine) Info(context.Context) (engine.Info, error) {
	return engine.Info{Version: "27.4.1"}, f.record("info")
}

func (f *fakeEngine) Host() string { return "127.0.0.1" }

func (f *fakeEngine) Pull(_ context.Context, ref image.Reference) error {
	if err := f.record("pull"); err != nil {
		return err
	}
	f.mu.Lock()
	f.images = append(f.images, ref)
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) BuildImage(_ context.Context, req engine.BuildRequest) error {
	if err := f.record("build"); err != nil {
		return err
	}
	data, err := io.ReadAll(req.Context)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, req)
	f.buildContexts = append(f.buildContexts, data)
	if f.buildLists {
		f.images = append(f.images, req.Image)
	}
	return nil
}

func (f *fakeEngine) ListImages(context.Context) ([]image.Reference, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Reference(nil), f.images...), nil
}

func (f *fakeEngine) Create(_ context.Context, req engine.CreateRequest) (string, error) {
	if err := f.record("create"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	f.nextID++
	return fmt.Sprintf("%064d", f.nextID), nil
}

func (f *fakeEngine) Start(context.Context, string) error { return f.record("start") }

func (f *fakeEngine) Stop(_ context.Context, _ string, timeout time.Duration) error {
	if err := f.record("stop"); err != nil {
		return err
	}
	f.mu.Lock()
	f.stops = append(f.stops, timeout)
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Remove(_ context.Context, _ string, removeVolumes bool) error {
	if err := f.record("remove"); err != nil {
		return err
	}
	f.mu.Lock()
	f.removes = append(f.removes, removeVolumes)
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Inspect(_ context.Context, id string) (engine.State, error) {
	if err := f.record("inspect"); err != nil {
		return engine.State{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.ID = id
	return s, nil
}

func (f *fakeEngine) Exec(context.Context, string, []string) (engine.ExecResult, error) {
	if err := f.record("exec"); err != nil {
		return engine.ExecResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.ExecResult{ExitCode: f.exitCode}, nil
}

func (f *fakeEngine) Logs(context.Context, string) (io.ReadCloser, error) {
	if err := f.record("logs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(strings.NewReader(f.logs)), nil
}
