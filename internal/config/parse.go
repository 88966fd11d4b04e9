package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rickgorman/testbox/pkg/ports"
	"github.com/rickgorman/testbox/pkg/testbox"
	"github.com/rickgorman/testbox/pkg/wait"
)

// Mount is a parsed bind mount.
type Mount struct {
	Source string
	Target string
	Mode   string
}

// ParseMount parses "source:target" or "source:target:mode", where mode is
// "rw" or "ro".
func ParseMount(s string) (Mount, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Mount{}, fmt.Errorf("invalid mount %q: want source:target[:ro|rw]", s)
	}

	m := Mount{Source: parts[0], Target: parts[1], Mode: testbox.ModeReadWrite}
	if len(parts) == 3 {
		m.Mode = parts[2]
	}
	if m.Mode != testbox.ModeReadWrite && m.Mode != testbox.ModeReadOnly {
		return Mount{}, fmt.Errorf("invalid mount %q: unknown mode %q", s, m.Mode)
	}
	if !strings.HasPrefix(m.Target, "/") {
		return Mount{}, fmt.Errorf("invalid mount %q: target must be absolute", s)
	}
	return m, nil
}

// ParseTmpfs parses "path" or "path:options".
func ParseTmpfs(s string) (string, string, error) {
	path, opts, _ := strings.Cut(s, ":")
	if !strings.HasPrefix(path, "/") {
		return "", "", fmt.Errorf("invalid tmpfs %q: path must be absolute", s)
	}
	return path, opts, nil
}

// ParseEnv parses KEY=VALUE.
func ParseEnv(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid environment variable %q: want KEY=VALUE", s)
	}
	return key, value, nil
}

// ParseWait parses a wait strategy:
//
//	default               exposed ports reachable from the host and listening inside
//	port                  exposed TCP ports accept connections from the host
//	internal-port         exposed TCP ports are listening inside the container
//	health                the image's health check passes
//	log:<text>            the output contains text
//	http:<path>[@<port>]  GET path returns 200
//
// An empty string means default.
func ParseWait(s string) (wait.Strategy, error) {
	kind, arg, hasArg := strings.Cut(s, ":")

	switch kind {
	case "", "default":
		if hasArg {
			break
		}
		return wait.Default(), nil
	case "port":
		if hasArg {
			break
		}
		return wait.ForListeningPort(), nil
	case "internal-port":
		if hasArg {
			break
		}
		return wait.ForInternalPort(), nil
	case "health":
		if hasArg {
			break
		}
		return wait.ForHealthy(), nil
	case "log":
		if arg == "" {
			return nil, fmt.Errorf("invalid wait strategy %q: log needs text", s)
		}
		return wait.ForLog(arg), nil
	case "http":
		path, portSpec, hasPort := strings.Cut(arg, "@")
		if path == "" {
			path = "/"
		}
		strategy := wait.ForHTTP(path)
		if hasPort {
			p, err := ports.Parse(portSpec)
			if err != nil {
				return nil, fmt.Errorf("invalid wait strategy %q: %w", s, err)
			}
			strategy.WithPort(p)
		}
		return strategy, nil
	}

	return nil, fmt.Errorf("unknown wait strategy %q", s)
}

// resolve makes path absolute relative to dir, expanding a leading ~.
func resolve(dir, path string) string {
	path = expandPath(path)
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

// expandPath expands ~ to home directory in paths.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
