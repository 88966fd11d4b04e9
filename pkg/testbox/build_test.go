package testbox

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
)

func TestBuild(t *testing.T) {
	eng := newFakeEngine()
	buildCtx, err := engine.TarDockerfile([]byte("FROM alpine\n"))
	require.NoError(t, err)

	ref, err := NewImageBuilder(eng).
		WithLogger(quiet).
		WithContext(buildCtx).
		WithBuildArg("VERSION", "1.2").
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, eng.builds, 1)
	req := eng.builds[0]
	assert.Equal(t, ref, req.Image)
	assert.Equal(t, map[string]string{"VERSION": "1.2"}, req.Args)
	assert.Equal(t, "true", req.Labels[LabelManaged])
	assert.Equal(t, []string{"build", "list"}, eng.ops())
}

func TestBuildGeneratesFreshReferences(t *testing.T) {
	eng := newFakeEngine()
	b := NewImageBuilder(eng).WithLogger(quiet)

	seen := map[image.Reference]bool{}
	for range 5 {
		ref, err := b.WithContext(bytes.NewReader(nil)).Build(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[ref], "reference %s reused", ref)
		assert.NotEqual(t, image.DefaultTag, ref.Tag)
		seen[ref] = true
	}
}

func TestBuildVerificationFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.buildLists = false

	ref, err := NewImageBuilder(eng).
		WithLogger(quiet).
		WithContext(bytes.NewReader(nil)).
		Build(context.Background())

	assert.True(t, ref.IsZero())
	var verifyErr *BuildVerificationError
	require.ErrorAs(t, err, &verifyErr)
	require.Len(t, eng.builds, 1)
	assert.Equal(t, eng.builds[0].Image, verifyErr.Image)
}

func TestBuildEngineFailure(t *testing.T) {
	eng := newFakeEngine()
	cause := eng.failOn("build")

	_, err := NewImageBuilder(eng).
		WithLogger(quiet).
		WithContext(bytes.NewReader(nil)).
		Build(context.Background())

	assert.ErrorIs(t, err, cause)
	assert.Zero(t, eng.count("list"))
}

func TestBuildContextDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.Dockerfile"), []byte("FROM alpine\n"), 0o644))

	eng := newFakeEngine()
	_, err := NewImageBuilder(eng).
		WithLogger(quiet).
		WithContextDir(dir).
		WithDockerfile("build.Dockerfile").
		Build(context.Background())
	require.NoError(t, err)

	require.Len(t, eng.builds, 1)
	assert.Equal(t, "build.Dockerfile", eng.builds[0].Dockerfile)
	assert.NotNil(t, eng.builds[0].Context)
}

func TestBuildNeedsContext(t *testing.T) {
	eng := newFakeEngine()

	_, err := NewImageBuilder(eng).WithLogger(quiet).Build(context.Background())

	assert.Error(t, err)
	assert.Empty(t, eng.ops())

	_, err = NewImageBuilder(eng).WithLogger(quiet).WithContextDir(filepath.Join(t.TempDir(), "missing")).Build(context.Background())
	assert.Error(t, err)
}

func TestBuildReusesContext(t *testing.T) {
	eng := newFakeEngine()
	buildCtx, err := engine.TarDockerfile([]byte("FROM alpine\nRUN true\n"))
	require.NoError(t, err)

	b := NewImageBuilder(eng).WithLogger(quiet).WithContext(buildCtx)

	first, err := b.Build(context.Background())
	require.NoError(t, err)
	second, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	require.Len(t, eng.buildContexts, 2)
	assert.NotEmpty(t, eng.buildContexts[0])
	assert.Equal(t, eng.buildContexts[0], eng.buildContexts[1])
	assert.NotSame(t, eng.builds[0].Context, eng.builds[1].Context)
}

func TestBuildContextReadError(t *testing.T) {
	eng := newFakeEngine()
	cause := errors.New("disk gone")

	_, err := NewImageBuilder(eng).
		WithLogger(quiet).
		WithContext(iotest.ErrReader(cause)).
		Build(context.Background())

	assert.ErrorIs(t, err, cause)
	assert.Empty(t, eng.ops())
}
