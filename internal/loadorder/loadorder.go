// Package loadorder reads the manifest that lists SQL fragments in install order.
package loadorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultManifest is the manifest location relative to the project directory.
const DefaultManifest = "sql/load-order.txt"

// Resolver returns fragment file names in the order they must be concatenated.
type Resolver interface {
	Resolve(manifestPath string) ([]string, error)
}

// FileResolver reads one fragment name per line.
// Blank lines and lines starting with # are skipped; surrounding whitespace is trimmed.
type FileResolver struct{}

// Resolve implements Resolver.
func (FileResolver) Resolve(manifestPath string) ([]string, error) {
	return Read(manifestPath)
}

// Read parses the manifest at path, preserving order and duplicates.
func Read(path string) ([]string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open load order: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	var names []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		names = append(names, line)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read load order %s: %w", path, err)
	}

	return names, nil
}
