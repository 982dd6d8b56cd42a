package pgconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/oshokin/pgext-install/internal/layout"
)

const (
	// DefaultBinary is looked up in PATH when no pg_config path is given.
	DefaultBinary = "pg_config"

	// FlagPkgLibDir asks for the shared library directory.
	FlagPkgLibDir = "--pkglibdir"
	// FlagShareDir asks for the architecture-independent share directory.
	FlagShareDir = "--sharedir"
	// FlagVersion asks for the server version string.
	FlagVersion = "--version"
)

// ErrProbeFailed is returned when pg_config fails or prints nothing usable.
var ErrProbeFailed = errors.New("pg_config probe failed")

// versionPattern matches "PostgreSQL 16.2", "PostgreSQL 17beta1" and the like.
var versionPattern = regexp.MustCompile(`PostgreSQL (\d+)`)

// Prober answers a single pg_config flag with its trimmed output.
type Prober interface {
	Query(ctx context.Context, flag string) (string, error)
}

// CommandProber runs a pg_config binary.
type CommandProber struct {
	binary string
}

// NewCommandProber returns a prober for the pg_config at path, or the one in PATH when empty.
func NewCommandProber(path string) *CommandProber {
	if path == "" {
		path = DefaultBinary
	}

	return &CommandProber{binary: path}
}

// Query implements Prober. Stderr is folded into the error on failure.
func (p *CommandProber) Query(ctx context.Context, flag string) (string, error) {
	binary, err := exec.LookPath(p.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found: %w", ErrProbeFailed, p.binary, err)
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, flag)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s %s: %w: %s", ErrProbeFailed, p.binary, flag, err, msg)
		}

		return "", fmt.Errorf("%w: %s %s: %w", ErrProbeFailed, p.binary, flag, err)
	}

	value := strings.TrimSpace(stdout.String())
	if value == "" {
		return "", fmt.Errorf("%w: %s %s printed nothing", ErrProbeFailed, p.binary, flag)
	}

	return value, nil
}

// PkgLibDir returns pg_config --pkglibdir.
func PkgLibDir(ctx context.Context, p Prober) (string, error) {
	return query(ctx, p, FlagPkgLibDir)
}

// ExtensionDir returns {pg_config --sharedir}/extension.
func ExtensionDir(ctx context.Context, p Prober) (string, error) {
	share, err := query(ctx, p, FlagShareDir)
	if err != nil {
		return "", err
	}

	return layout.ExtensionDir(share), nil
}

// MajorVersion parses the major number out of pg_config --version.
func MajorVersion(ctx context.Context, p Prober) (int, error) {
	raw, err := query(ctx, p, FlagVersion)
	if err != nil {
		return 0, err
	}

	return ParseMajorVersion(raw)
}

// ParseMajorVersion extracts 16 from "PostgreSQL 16.2".
func ParseMajorVersion(raw string) (int, error) {
	match := versionPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, fmt.Errorf("%w: unrecognized version %q", ErrProbeFailed, raw)
	}

	major, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("%w: parse version %q: %w", ErrProbeFailed, raw, err)
	}

	return major, nil
}

func query(ctx context.Context, p Prober, flag string) (string, error) {
	value, err := p.Query(ctx, flag)
	if err != nil {
		if errors.Is(err, ErrProbeFailed) {
			return "", err
		}

		return "", fmt.Errorf("%w: %s: %w", ErrProbeFailed, flag, err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty answer for %s", ErrProbeFailed, flag)
	}

	return filepath.FromSlash(value), nil
}
