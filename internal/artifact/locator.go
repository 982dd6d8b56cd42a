package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/pgext-install/internal/domain/extension"
	"github.com/oshokin/pgext-install/internal/logger"
)

const libraryPrefix = "lib"

// librarySuffixes lists the shared library suffixes produced by cargo on supported platforms.
//
//nolint:gochecknoglobals // Read-only lookup table.
var librarySuffixes = []string{".so", ".dylib", ".dll"}

var (
	// ErrMissingBuildOutput is returned when the profile output directory does not exist.
	ErrMissingBuildOutput = errors.New("build output directory does not exist")
	// ErrArtifactNotFound is returned when no entry matches the extension name.
	ErrArtifactNotFound = errors.New("library file not found")
	// ErrAmbiguousArtifact is returned in strict mode when several entries match.
	ErrAmbiguousArtifact = errors.New("more than one library file matches")
)

// Locator searches a cargo target directory for an extension's shared library.
type Locator struct {
	// Strict rejects multiple matches instead of taking the first one.
	Strict bool
}

// Matches reports whether filename is accepted as the library for name.
func Matches(filename, name string) bool {
	if !strings.HasPrefix(filename, libraryPrefix) || !strings.Contains(filename, name) {
		return false
	}

	for _, suffix := range librarySuffixes {
		if strings.HasSuffix(filename, suffix) {
			return true
		}
	}

	return false
}

// Locate returns the path of the library for name under buildRoot/{profile}.
// Entries are visited in lexical order so the first match is stable across
// filesystems.
func (l *Locator) Locate(ctx context.Context, buildRoot string, profile extension.Profile, name string) (string, error) {
	dir := filepath.Join(buildRoot, profile.Dir())

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrMissingBuildOutput, dir)
		}

		return "", fmt.Errorf("stat %s: %w", dir, err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrMissingBuildOutput, dir)
	}

	// os.ReadDir sorts by file name.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", dir, err)
	}

	var matches []string

	for _, entry := range entries {
		if entry.IsDir() || !Matches(entry.Name(), name) {
			continue
		}

		matches = append(matches, filepath.Join(dir, entry.Name()))
	}

	switch {
	case len(matches) == 0:
		return "", fmt.Errorf("%w in %s", ErrArtifactNotFound, dir)
	case len(matches) > 1 && l.Strict:
		return "", fmt.Errorf("%w in %s: %s", ErrAmbiguousArtifact, dir, strings.Join(matches, ", "))
	case len(matches) > 1:
		logger.WarnKV(ctx, "Several libraries match the extension name, using the first",
			"selected", matches[0],
			"ignored", matches[1:])
	}

	logger.DebugKV(ctx, "Located shared library", "path", matches[0], "profile", profile.String())

	return matches[0], nil
}
