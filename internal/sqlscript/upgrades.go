package sqlscript

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/oshokin/pgext-install/internal/fsutil"
	"github.com/oshokin/pgext-install/internal/layout"
)

// CopyObserver is told about each file right before it is copied.
type CopyObserver func(src, dest string)

// UpgradeScripts lists the {name}--*.sql files in the fragments directory, sorted.
func (a *Assembler) UpgradeScripts(name string) ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s directory: %w", a.dir, err)
	}

	var scripts []string

	for _, entry := range entries {
		if entry.IsDir() || !layout.IsUpgradeScript(entry.Name(), name) {
			continue
		}

		scripts = append(scripts, entry.Name())
	}

	return scripts, nil
}

// StageUpgrades copies every {name}--*.sql file into destDir and returns the
// destination paths. Unlike plain prefix matching, file names listed in skip
// are left alone; the installer passes the generated {name}--{version}.sql so
// a stray copy in the fragments directory cannot overwrite it. The first
// failed copy aborts the operation and the paths staged so far are returned.
func (a *Assembler) StageUpgrades(name, destDir string, observe CopyObserver, skip ...string) ([]string, error) {
	scripts, err := a.UpgradeScripts(name)
	if err != nil {
		return nil, err
	}

	if err = fsutil.EnsureDir(destDir); err != nil {
		return nil, err
	}

	staged := make([]string, 0, len(scripts))

	for _, script := range scripts {
		if slices.Contains(skip, script) {
			continue
		}

		src := filepath.Join(a.dir, script)
		dest := filepath.Join(destDir, script)

		if observe != nil {
			observe(src, dest)
		}

		if err = fsutil.CopyFile(src, dest); err != nil {
			return staged, err
		}

		staged = append(staged, dest)
	}

	return staged, nil
}
