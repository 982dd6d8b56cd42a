package control

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/pgext-install/internal/domain/extension"
)

const (
	// Suffix is the control file extension.
	Suffix = ".control"

	// VersionProperty names the property holding the version to install.
	VersionProperty = "default_version"
)

var (
	// ErrControlFileNotFound is returned when the project directory has no control file.
	ErrControlFileNotFound = errors.New("control file not found")
	// ErrMultipleControlFiles is returned when the project directory has more than one control file.
	ErrMultipleControlFiles = errors.New("more than one control file")
	// ErrMissingVersionProperty is returned when default_version is not declared.
	ErrMissingVersionProperty = errors.New("cannot determine extension version number, is the `default_version` property declared in the control file?")
)

// File is a parsed control file.
type File struct {
	// Path is where the control file was read from.
	Path string
	// Name is the extension name, the file stem.
	Name string

	properties map[string]string
}

// Find returns the only *.control file directly inside dir.
func Find(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Suffix))
	if err != nil {
		return "", fmt.Errorf("search control file: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrControlFileNotFound, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w in %s: %s", ErrMultipleControlFiles, dir, strings.Join(matches, ", "))
	}
}

// Load reads and parses the control file at path.
func Load(path string) (*File, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read control file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), Suffix)
	if err = extension.ValidateName(name); err != nil {
		return nil, err
	}

	return &File{
		Path:       path,
		Name:       name,
		properties: Parse(contents),
	}, nil
}

// Parse extracts key/value pairs. Later duplicates win.
func Parse(contents []byte) map[string]string {
	properties := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		properties[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	return properties
}

func unquote(value string) string {
	if len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'' {
		return value[1 : len(value)-1]
	}

	return value
}

// Property returns a raw property value.
func (f *File) Property(key string) (string, bool) {
	value, ok := f.properties[key]

	return value, ok
}

// Version returns default_version.
func (f *File) Version() (string, error) {
	value, ok := f.Property(VersionProperty)
	if !ok || value == "" {
		return "", fmt.Errorf("%s: %w", f.Path, ErrMissingVersionProperty)
	}

	return value, nil
}

// Identity combines the file stem and default_version.
func (f *File) Identity() (extension.Identity, error) {
	version, err := f.Version()
	if err != nil {
		return extension.Identity{}, err
	}

	return extension.NewIdentity(f.Name, version)
}
