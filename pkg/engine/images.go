package engine

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/rickgorman/testbox/pkg/image"
)

// untagged is how the engine lists images without a tag.
const untagged = "<none>:<none>"

// Pull pulls an image.
func (d *Docker) Pull(ctx context.Context, ref image.Reference) error {
	d.logger.Debug("pulling image", "image", ref)

	reader, err := d.cli.ImagePull(ctx, ref.String(), dockerimage.PullOptions{})
	if err != nil {
		return wrap("pull", err)
	}
	defer reader.Close()

	return wrap("pull", drainJSONMessages(reader))
}

// ListImages lists the locally known tagged images.
func (d *Docker) ListImages(ctx context.Context) ([]image.Reference, error) {
	images, err := d.cli.ImageList(ctx, dockerimage.ListOptions{})
	if err != nil {
		return nil, wrap("list images", err)
	}

	var refs []image.Reference
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == untagged {
				continue
			}
			ref, err := image.Parse(tag)
			if err != nil {
				continue
			}
			refs = append(refs, ref)
		}
	}

	return refs, nil
}

// BuildImage builds an image tagged with req.Image.
func (d *Docker) BuildImage(ctx context.Context, req BuildRequest) error {
	d.logger.Debug("building image", "image", req.Image)

	opts := types.ImageBuildOptions{
		Tags:        []string{req.Image.String()},
		Dockerfile:  req.Dockerfile,
		BuildArgs:   buildArgs(req.Args),
		Labels:      req.Labels,
		Remove:      true,
		ForceRemove: true,
	}

	resp, err := d.cli.ImageBuild(ctx, req.Context, opts)
	if err != nil {
		return wrap("build", err)
	}
	defer resp.Body.Close()

	return wrap("build", drainJSONMessages(resp.Body))
}

// drainJSONMessages consumes a progress stream and returns the first error
// reported in it.
func drainJSONMessages(r io.Reader) error {
	return jsonmessage.DisplayJSONMessagesStream(r, io.Discard, 0, false, nil)
}

func buildArgs(args map[string]string) map[string]*string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]*string, len(args))
	for k, v := range args {
		v := v
		out[k] = &v
	}
	return out
}
