package receipt

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/pgext-install/internal/fsutil"
)

// File kinds recorded in a receipt.
const (
	KindControl = "control"
	KindLibrary = "library"
	KindScript  = "script"
	KindUpgrade = "upgrade"
)

// Receipt describes one completed install.
type Receipt struct {
	// Extension is the extension name.
	Extension string `yaml:"extension"`
	// Version is the installed default_version.
	Version string `yaml:"version"`
	// Profile is the cargo profile the library came from.
	Profile string `yaml:"profile"`
	// BaseDir is the staging root.
	BaseDir string `yaml:"base_dir"`
	// ToolVersion is the installer version.
	ToolVersion string `yaml:"tool_version"`
	// InstalledAt is when the install finished.
	InstalledAt time.Time `yaml:"installed_at"`
	// Files lists everything written, in write order.
	Files []File `yaml:"files"`
}

// File is one installed artifact.
type File struct {
	// Path is the absolute destination path.
	Path string `yaml:"path"`
	// Kind is one of the Kind* constants.
	Kind string `yaml:"kind"`
	// Checksum is the base64 encoded SHA-512 of the contents.
	Checksum string `yaml:"sha512"`
}

// Checksum returns the base64 encoded SHA-512 of the file at path.
func Checksum(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	sum, err := fsutil.Digest(contents)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sum), nil
}

// Add checksums path and appends it to the receipt.
func (r *Receipt) Add(path, kind string) error {
	sum, err := Checksum(path)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", path, err)
	}

	r.Files = append(r.Files, File{
		Path:     path,
		Kind:     kind,
		Checksum: sum,
	})

	return nil
}
