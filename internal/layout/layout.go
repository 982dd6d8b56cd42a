package layout

import (
	"path/filepath"
	"strings"

	"github.com/oshokin/pgext-install/internal/domain/extension"
)

const (
	// ExtensionSubdir is appended to pg_config --sharedir.
	ExtensionSubdir = "extension"

	// LibrarySuffix is the suffix the server's loader expects, whatever the build produced.
	LibrarySuffix = ".so"

	scriptSuffix    = ".sql"
	versionSplitter = "--"
)

// ExtensionDir returns the extension script directory under a share directory.
func ExtensionDir(shareDir string) string {
	return filepath.Join(shareDir, ExtensionSubdir)
}

// Plan computes the install destination for the given pg_config directories
// rebased under baseDir.
func Plan(baseDir, pkgLibDir, extensionDir string) extension.Destination {
	scriptDir := Rebase(baseDir, extensionDir)

	return extension.Destination{
		ControlDir: scriptDir,
		LibraryDir: Rebase(baseDir, pkgLibDir),
		ScriptDir:  scriptDir,
	}
}

// LibraryFilename is the installed shared library name, e.g. myext.so.
func LibraryFilename(name string) string {
	return name + LibrarySuffix
}

// ScriptFilename is the generated versioned script name, e.g. myext--1.2.sql.
func ScriptFilename(id extension.Identity) string {
	return id.Name + versionSplitter + id.Version + scriptSuffix
}

// IsUpgradeScript reports whether filename looks like {name}--*.sql.
func IsUpgradeScript(filename, name string) bool {
	return strings.HasPrefix(filename, name+versionSplitter) && strings.HasSuffix(filename, scriptSuffix)
}
