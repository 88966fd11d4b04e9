package testbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
)

// ImageBuilder builds an image under a generated reference.
type ImageBuilder struct {
	engine engine.Engine

	mu sync.Mutex
	// context is read into contextData on the first Build so later builds
	// can send it again.
	context     io.Reader
	contextData []byte
	contextDir  string
	dockerfile string
	args       map[string]string
	logger     *log.Logger
}

// NewImageBuilder returns an ImageBuilder using eng.
func NewImageBuilder(eng engine.Engine) *ImageBuilder {
	return &ImageBuilder{
		engine: eng,
		args:   map[string]string{},
		logger: log.Default(),
	}
}

// WithContext sets the build context as a tar stream.
func (b *ImageBuilder) WithContext(r io.Reader) *ImageBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context = r
	b.contextData = nil
	b.contextDir = ""
	return b
}

// WithContextDir uses the contents of dir as build context.
func (b *ImageBuilder) WithContextDir(dir string) *ImageBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contextDir = dir
	b.context = nil
	b.contextData = nil
	return b
}

// WithDockerfile sets the Dockerfile path inside the context.
func (b *ImageBuilder) WithDockerfile(path string) *ImageBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dockerfile = path
	return b
}

// WithBuildArg sets a build-time variable.
func (b *ImageBuilder) WithBuildArg(key, value string) *ImageBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.args[key] = value
	return b
}

// WithLogger sets the logger for build events.
func (b *ImageBuilder) WithLogger(logger *log.Logger) *ImageBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// Build builds the image and returns its reference. Every call generates a
// new reference and sends the same build context. The image is verified to
// be listed by the engine afterwards; if it is not, Build returns a
// *BuildVerificationError.
func (b *ImageBuilder) Build(ctx context.Context) (image.Reference, error) {
	buildCtx, dockerfile, args, logger, err := b.snapshot()
	if err != nil {
		return image.Reference{}, err
	}

	ref := image.Unique()
	logger.Info("building image", "image", ref)

	err = b.engine.BuildImage(ctx, engine.BuildRequest{
		Image:      ref,
		Context:    buildCtx,
		Dockerfile: dockerfile,
		Args:       args,
		Labels:     map[string]string{LabelManaged: "true"},
	})
	if err != nil {
		return image.Reference{}, err
	}

	local, err := b.engine.ListImages(ctx)
	if err != nil {
		return image.Reference{}, err
	}
	if !image.Contains(local, ref) {
		return image.Reference{}, &BuildVerificationError{Image: ref}
	}

	logger.Debug("image built", "image", ref)
	return ref, nil
}

// snapshot returns a fresh build context reader and the build settings.
func (b *ImageBuilder) snapshot() (io.Reader, string, map[string]string, *log.Logger, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var buildCtx io.Reader
	switch {
	case b.contextDir != "":
		r, err := engine.TarDirectory(b.contextDir)
		if err != nil {
			return nil, "", nil, nil, err
		}
		buildCtx = r
	case b.context != nil:
		data, err := io.ReadAll(b.context)
		if err != nil {
			return nil, "", nil, nil, fmt.Errorf("failed to read build context: %w", err)
		}
		b.contextData = data
		b.context = nil
		buildCtx = bytes.NewReader(data)
	case b.contextData != nil:
		buildCtx = bytes.NewReader(b.contextData)
	default:
		return nil, "", nil, nil, errors.New("image build needs a context")
	}

	return buildCtx, b.dockerfile, maps.Clone(b.args), b.logger, nil
}
