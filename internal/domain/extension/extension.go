package extension

import (
	"errors"
	"fmt"
	"strings"
)

// Profile selects the cargo build profile and therefore the build output subdirectory.
type Profile int

const (
	// Debug is the default cargo profile (target/debug).
	Debug Profile = iota
	// Release is the optimized cargo profile (target/release).
	Release
)

// ProfileFromRelease maps the --release switch to a Profile.
func ProfileFromRelease(release bool) Profile {
	if release {
		return Release
	}

	return Debug
}

// Dir returns the build output subdirectory name for the profile.
func (p Profile) Dir() string {
	if p == Release {
		return "release"
	}

	return "debug"
}

// String implements fmt.Stringer.
func (p Profile) String() string {
	return p.Dir()
}

// pathSeparators are rejected in names and versions, which become file names.
const pathSeparators = `/\`

var (
	// ErrInvalidName is returned for an empty extension name or one containing path separators.
	ErrInvalidName = errors.New("invalid extension name")
	// ErrInvalidVersion is returned for an empty extension version or one containing path separators.
	ErrInvalidVersion = errors.New("invalid extension version")
)

// Identity names an extension and the version being installed.
type Identity struct {
	// Name is the control file stem, e.g. "myext" for myext.control.
	Name string
	// Version is the control file's default_version.
	Version string
}

// NewIdentity builds a validated Identity.
func NewIdentity(name, version string) (Identity, error) {
	id := Identity{
		Name:    name,
		Version: version,
	}

	if err := id.Validate(); err != nil {
		return Identity{}, err
	}

	return id, nil
}

// Validate checks the identity invariants.
func (id Identity) Validate() error {
	if err := ValidateName(id.Name); err != nil {
		return err
	}

	if strings.TrimSpace(id.Version) == "" {
		return fmt.Errorf("%w: empty version for %q", ErrInvalidVersion, id.Name)
	}

	if strings.ContainsAny(id.Version, pathSeparators) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidVersion, id.Version)
	}

	return nil
}

// ValidateName checks that name is non-empty and has no path separators.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}

	if strings.ContainsAny(name, pathSeparators) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}

	return nil
}

// Destination is the set of directories an install writes into.
// All paths already include the staging root.
type Destination struct {
	// ControlDir receives the control file.
	ControlDir string
	// LibraryDir receives the shared library.
	LibraryDir string
	// ScriptDir receives the versioned script and upgrade scripts.
	ScriptDir string
}
