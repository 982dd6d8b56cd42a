package fsutil

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// DirPermissions is used for directories created on the destination side.
	DirPermissions os.FileMode = 0o755

	// ChecksumFunction verifies replaced files and checksums installed ones.
	ChecksumFunction crypto.Hash = crypto.SHA512
)

var errHashUnavailable = errors.New("hash function unavailable")

// DestinationCreateError reports that a destination directory could not be created.
type DestinationCreateError struct {
	Dir string
	Err error
}

func (e *DestinationCreateError) Error() string {
	return fmt.Sprintf("create destination directory %s: %v", e.Dir, e.Err)
}

func (e *DestinationCreateError) Unwrap() error {
	return e.Err
}

// CopyError reports a failed copy of Src to Dest.
type CopyError struct {
	Src  string
	Dest string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s to %s: %v", e.Src, e.Dest, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return nil
	}

	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return &DestinationCreateError{Dir: dir, Err: err}
	}

	return nil
}

// Digest hashes contents with ChecksumFunction.
func Digest(contents []byte) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err := hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// CopyFile copies src to dest byte for byte, creating dest's directory first.
// An existing dest is replaced by rename, never rewritten in place, so a
// process that has it open or mapped keeps the old contents. The new file
// gets src's permission bits.
func CopyFile(src, dest string) error {
	if err := EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	if err := replace(src, dest); err != nil {
		return &CopyError{Src: src, Dest: dest, Err: err}
	}

	return nil
}

func replace(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	contents, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}

	sum, err := Digest(contents)
	if err != nil {
		return err
	}

	// Apply swaps the target aside, so it has to exist first.
	if err = touch(dest, info.Mode().Perm()); err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: dest,
		TargetMode: info.Mode().Perm(),
		Checksum:   sum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(contents), options); err != nil {
		return err
	}

	// Windows cannot remove a file that is still mapped, so Apply only hides it.
	old := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".old")
	if _, err = os.Lstat(old); err == nil {
		_ = os.Remove(old)
	}

	return nil
}

func touch(path string, mode os.FileMode) error {
	if _, err := os.Lstat(path); err == nil || !errors.Is(err, os.ErrNotExist) {
		return err
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}

	return file.Close()
}
