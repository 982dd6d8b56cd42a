package layout

import (
	"os"
	"path/filepath"
	"strings"
)

// Relocate strips the root (and volume name, on Windows) from an absolute path.
// Relative paths are returned unchanged, so Relocate is idempotent.
func Relocate(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}

	rest := path[len(filepath.VolumeName(path)):]

	return strings.TrimLeftFunc(rest, func(r rune) bool {
		return r < 0x80 && os.IsPathSeparator(uint8(r))
	})
}

// Rebase relocates path and joins it under root.
// An empty root means the filesystem root, i.e. install for real.
func Rebase(root, path string) string {
	if root == "" {
		root = string(filepath.Separator)
	}

	return filepath.Join(root, Relocate(path))
}
