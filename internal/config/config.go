// Package config loads container definitions from YAML files and turns
// them into testbox builders.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/image"
	"github.com/rickgorman/testbox/pkg/ports"
	"github.com/rickgorman/testbox/pkg/testbox"
)

// File is a parsed definitions file.
type File struct {
	// Dir is the directory relative paths are resolved against.
	Dir        string       `yaml:"-"`
	Containers []Definition `yaml:"containers"`
}

// Definition describes one container.
type Definition struct {
	Name           string            `yaml:"name"`
	Image          string            `yaml:"image"`
	Ports          []string          `yaml:"ports"`
	Env            map[string]string `yaml:"env"`
	EnvFile        string            `yaml:"env_file"`
	Cmd            []string          `yaml:"cmd"`
	Mounts         []string          `yaml:"mounts"`
	Tmpfs          map[string]string `yaml:"tmpfs"`
	StartupTimeout time.Duration     `yaml:"startup_timeout"`
	Wait           string            `yaml:"wait"`
	Labels         map[string]string `yaml:"labels"`
}

// Load reads and validates a definitions file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses a definitions file. Relative paths resolve against dir.
func Parse(data []byte, dir string) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	f := &File{Dir: dir}
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) validate() error {
	if len(f.Containers) == 0 {
		return errors.New("no containers defined")
	}

	names := make(map[string]bool)
	for i, def := range f.Containers {
		label := def.Name
		if label == "" {
			label = fmt.Sprintf("containers[%d]", i)
		}

		if def.Name != "" {
			if names[def.Name] {
				return fmt.Errorf("%s: duplicate name", label)
			}
			names[def.Name] = true
		}
		if _, err := image.Parse(def.Image); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		for _, p := range def.Ports {
			if _, err := ports.Parse(p); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
		}
		for _, m := range def.Mounts {
			if _, err := ParseMount(m); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
		}
		if _, err := ParseWait(def.Wait); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if def.StartupTimeout < 0 {
			return fmt.Errorf("%s: negative startup_timeout", label)
		}
	}
	return nil
}

// Builder returns a testbox builder for the definition. Relative paths
// resolve against dir.
func (d Definition) Builder(eng engine.Engine, dir string) (*testbox.Builder, error) {
	ref, err := image.Parse(d.Image)
	if err != nil {
		return nil, err
	}
	return d.Apply(testbox.New(eng, ref), dir)
}

// Apply configures b with everything the definition sets except the image.
func (d Definition) Apply(b *testbox.Builder, dir string) (*testbox.Builder, error) {
	if d.Name != "" {
		b.WithName(d.Name)
	}
	if len(d.Cmd) > 0 {
		b.WithCmd(d.Cmd...)
	}
	if d.EnvFile != "" {
		b.WithEnvFile(resolve(dir, d.EnvFile))
	}
	// Explicit variables win over the env file.
	b.WithEnvMap(d.Env)
	b.WithTmpFs(d.Tmpfs)

	for k, v := range d.Labels {
		b.WithLabel(k, v)
	}

	for _, s := range d.Ports {
		p, err := ports.Parse(s)
		if err != nil {
			return nil, err
		}
		b.WithExposedPorts(p)
	}

	for _, s := range d.Mounts {
		m, err := ParseMount(s)
		if err != nil {
			return nil, err
		}
		b.WithBindMount(resolve(dir, m.Source), m.Target, m.Mode)
	}

	if d.StartupTimeout > 0 {
		b.WithStartupTimeout(d.StartupTimeout)
	}

	strategy, err := ParseWait(d.Wait)
	if err != nil {
		return nil, err
	}
	b.WithWaitStrategy(strategy)

	return b, nil
}

// DisplayName returns the definition's name, or its image when unnamed.
func (d Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Image
}
