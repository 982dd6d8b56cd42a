package sqlscript

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/oshokin/pgext-install/internal/fsutil"
)

// ScriptPermissions is the mode of the generated script.
const ScriptPermissions os.FileMode = 0o644

// fragmentTrailer separates one fragment from the next banner.
const fragmentTrailer = "\n\n\n"

// FragmentReadError reports a load-order entry that could not be read.
type FragmentReadError struct {
	File string
	Err  error
}

func (e *FragmentReadError) Error() string {
	return fmt.Sprintf("could not read SQL fragment %s: %v", e.File, e.Err)
}

func (e *FragmentReadError) Unwrap() error {
	return e.Err
}

// Assembler reads fragments and upgrade scripts from one directory.
type Assembler struct {
	dir   string
	label string
}

// NewAssembler returns an Assembler over the fragments directory dir.
// Banners name fragments as label/filename using forward slashes;
// an empty label falls back to dir.
func NewAssembler(dir, label string) *Assembler {
	if label == "" {
		label = dir
	}

	return &Assembler{
		dir:   dir,
		label: label,
	}
}

// Assemble writes fragments, in order, into outputPath, creating or truncating it.
// A fragment that cannot be read aborts assembly; the partial output is left behind.
func (a *Assembler) Assemble(fragments []string, outputPath string) error {
	if err := fsutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(outputPath), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, ScriptPermissions)
	if err != nil {
		return fmt.Errorf("create script %s: %w", outputPath, err)
	}

	w := bufio.NewWriter(out)

	if err = a.writeFragments(w, fragments); err != nil {
		_ = w.Flush()
		_ = out.Close()

		return err
	}

	if err = w.Flush(); err != nil {
		_ = out.Close()

		return fmt.Errorf("write script %s: %w", outputPath, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close script %s: %w", outputPath, err)
	}

	return nil
}

func (a *Assembler) writeFragments(w *bufio.Writer, fragments []string) error {
	for _, name := range fragments {
		contents, err := os.ReadFile(filepath.Join(a.dir, filepath.FromSlash(name)))
		if err != nil {
			return &FragmentReadError{File: filepath.Join(a.dir, name), Err: err}
		}

		if _, err = fmt.Fprintf(w, "--\n-- %s\n--\n", a.bannerPath(name)); err != nil {
			return fmt.Errorf("write banner for %s: %w", name, err)
		}

		if _, err = w.Write(contents); err != nil {
			return fmt.Errorf("write fragment %s: %w", name, err)
		}

		if _, err = w.WriteString(fragmentTrailer); err != nil {
			return fmt.Errorf("write fragment %s: %w", name, err)
		}
	}

	return nil
}

func (a *Assembler) bannerPath(name string) string {
	return path.Join(filepath.ToSlash(a.label), filepath.ToSlash(name))
}
