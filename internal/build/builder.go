package build

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/pgext-install/internal/domain/extension"
	"github.com/oshokin/pgext-install/internal/logger"
)

// DefaultCargo is used when no cargo binary is configured.
const DefaultCargo = "cargo"

// ErrBuildFailed is returned when cargo exits with a non-zero status.
var ErrBuildFailed = errors.New("failed to build extension")

// Config is everything that shapes the cargo invocation.
// Environment overrides are mapped into it by the config package; nothing
// here reads the environment.
type Config struct {
	// Cargo is the cargo executable.
	Cargo string
	// ProjectDir is where cargo runs.
	ProjectDir string
	// Profile selects --release.
	Profile extension.Profile
	// Features is passed to --features together with --no-default-features.
	// Blank means no feature flags at all.
	Features string
	// Flags are appended verbatim.
	Flags []string
}

// DefaultFeatures is the feature selected for a server major version, e.g. pg16.
func DefaultFeatures(major int) string {
	return fmt.Sprintf("pg%d", major)
}

// ResolveFeatures returns the configured features, or the server default when unset.
func ResolveFeatures(configured *string, major int) string {
	if configured != nil {
		return *configured
	}

	return DefaultFeatures(major)
}

// Builder runs cargo through a Runner.
type Builder struct {
	runner Runner
}

// NewBuilder returns a Builder using runner.
func NewBuilder(runner Runner) *Builder {
	return &Builder{runner: runner}
}

// Command assembles `cargo build` for cfg.
func (b *Builder) Command(cfg *Config) *Command {
	cargo := cfg.Cargo
	if cargo == "" {
		cargo = DefaultCargo
	}

	args := []string{"build"}
	if cfg.Profile == extension.Release {
		args = append(args, "--release")
	}

	if features := strings.TrimSpace(cfg.Features); features != "" {
		args = append(args, "--features", features, "--no-default-features")
	}

	args = append(args, cfg.Flags...)

	return &Command{
		Name: cargo,
		Args: args,
		Dir:  cfg.ProjectDir,
	}
}

// Build runs cargo and waits for it. Any non-zero exit is ErrBuildFailed.
func (b *Builder) Build(ctx context.Context, cfg *Config) error {
	cmd := b.Command(cfg)

	logger.DebugKV(ctx, "Running cargo", "command", cmd.String(), "dir", cmd.Dir)

	code, err := b.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to spawn cargo: %s: %w", cmd, err)
	}

	if code != 0 {
		return fmt.Errorf("%w: %s exited with status %d", ErrBuildFailed, cmd.Name, code)
	}

	return nil
}
