package image

import (
	"errors"
	"fmt"

	"github.com/distribution/reference"
	"github.com/google/uuid"
)

// DefaultTag is used when a reference does not name a tag.
const DefaultTag = "latest"

// uniquePrefix marks images generated by Unique.
const uniquePrefix = "testbox-"

// Reference identifies an image by name and tag.
type Reference struct {
	Name string
	Tag  string
}

// New returns a reference for name and tag. An empty tag means DefaultTag.
// Fully qualified Docker Hub names are shortened to their familiar form.
func New(name, tag string) Reference {
	if tag == "" {
		tag = DefaultTag
	}
	if named, err := reference.ParseNormalizedNamed(name); err == nil {
		name = reference.FamiliarName(named)
	}
	return Reference{Name: name, Tag: tag}
}

// Parse parses a reference string such as "redis", "redis:7" or
// "registry.local:5000/team/app:1.2". Digest references are not supported.
func Parse(s string) (Reference, error) {
	if s == "" {
		return Reference{}, errors.New("empty image reference")
	}

	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid image reference %q: %w", s, err)
	}
	if _, ok := named.(reference.Digested); ok {
		return Reference{}, fmt.Errorf("digest references are not supported: %q", s)
	}

	tag := DefaultTag
	if tagged, ok := named.(reference.Tagged); ok {
		tag = tagged.Tag()
	}

	return Reference{Name: reference.FamiliarName(named), Tag: tag}, nil
}

// MustParse is like Parse but panics on error. Intended for constants in tests.
func MustParse(s string) Reference {
	ref, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// Unique returns a reference whose name and tag are two freshly generated
// random identifiers.
func Unique() Reference {
	return Reference{
		Name: uniquePrefix + uuid.NewString(),
		Tag:  uuid.NewString(),
	}
}

// Equal reports whether r and other name the same image and tag.
func (r Reference) Equal(other Reference) bool {
	return r == other
}

// IsZero reports whether r has no name.
func (r Reference) IsZero() bool {
	return r.Name == ""
}

// String returns the reference in name:tag form.
func (r Reference) String() string {
	tag := r.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return r.Name + ":" + tag
}

// Contains reports whether ref is one of refs.
func Contains(refs []Reference, ref Reference) bool {
	for _, r := range refs {
		if r.Equal(ref) {
			return true
		}
	}
	return false
}
