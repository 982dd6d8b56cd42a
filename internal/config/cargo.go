package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultTargetSubdir is cargo's default target directory name.
const DefaultTargetSubdir = "target"

// cargoConfigFiles are checked in order inside {project}/.cargo.
//
//nolint:gochecknoglobals // Read-only lookup table.
var cargoConfigFiles = []string{"config.toml", "config"}

// cargoConfig is the subset of .cargo/config.toml the installer reads.
type cargoConfig struct {
	Build struct {
		TargetDir string `toml:"target-dir"`
	} `toml:"build"`
}

// ResolveTargetDir returns cargo's target directory for the project:
// the configured override, else [build] target-dir from .cargo/config.toml,
// else {project}/target. Relative values are taken from the project
// directory, where cargo runs.
func (c *Config) ResolveTargetDir() (string, error) {
	if c.TargetDir != "" {
		return c.inProject(c.TargetDir), nil
	}

	for _, name := range cargoConfigFiles {
		path := filepath.Join(c.ProjectDir, ".cargo", name)

		contents, err := os.ReadFile(filepath.Clean(path))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err != nil {
			return "", fmt.Errorf("read cargo config: %w", err)
		}

		var parsed cargoConfig
		if err = toml.Unmarshal(contents, &parsed); err != nil {
			return "", fmt.Errorf("parse cargo config %s: %w", path, err)
		}

		if parsed.Build.TargetDir != "" {
			return c.inProject(parsed.Build.TargetDir), nil
		}
	}

	return filepath.Join(c.ProjectDir, DefaultTargetSubdir), nil
}
