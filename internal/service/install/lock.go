package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/pgext-install/internal/fsutil"
	"github.com/oshokin/pgext-install/internal/logger"
)

const (
	// LockFilename is created inside the cargo target directory while an install runs.
	LockFilename = ".pgext-install.lock"

	// lockLifetime is the age after which a lock is ignored even if its PID is alive.
	lockLifetime = 30 * time.Minute

	// lockAttempts bounds how often a stale lock is taken over before giving up.
	lockAttempts = 3

	lockPermissions os.FileMode = 0o644
)

// ErrInstallInProgress is returned when another live process holds the install lock.
var ErrInstallInProgress = errors.New("another install is running")

// acquireLock takes the install lock in dir and returns its release function.
// A lock left behind by a dead process, or older than lockLifetime, is taken over.
func acquireLock(ctx context.Context, dir string) (func(), error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, LockFilename)

	for range lockAttempts {
		err := createLock(path)
		if err == nil {
			logger.DebugKV(ctx, "Acquired install lock", "path", path)

			return releaseFunc(ctx, path), nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create install lock: %w", err)
		}

		if lockHeld(ctx, path) {
			return nil, fmt.Errorf("%w: %s", ErrInstallInProgress, path)
		}

		if err = discardStaleLock(ctx, path); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrInstallInProgress, path)
}

// createLock publishes a marker holding our PID. The marker is written under a
// private name and linked into place, so it never exists without its PID.
func createLock(path string) error {
	private := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())

	if err := os.WriteFile(private, []byte(strconv.Itoa(os.Getpid())), lockPermissions); err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(private)
	}()

	return os.Link(private, path)
}

// discardStaleLock moves the marker at path aside under a private name and
// removes it. If another process replaced the stale marker after it was
// inspected, the replacement is put back and ErrInstallInProgress returned.
func discardStaleLock(ctx context.Context, path string) error {
	aside := fmt.Sprintf("%s.%d.stale", path, os.Getpid())

	if err := os.Rename(path, aside); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("move stale install lock: %w", err)
	}

	defer func() {
		_ = os.Remove(aside)
	}()

	if lockHeld(ctx, aside) {
		if err := os.Link(aside, path); err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("restore install lock: %w", err)
		}

		return fmt.Errorf("%w: %s", ErrInstallInProgress, path)
	}

	logger.InfoKV(ctx, "Removed stale install lock", "path", path)

	return nil
}

func releaseFunc(ctx context.Context, path string) func() {
	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove install lock", "path", path, "error", err)
		}
	}
}

// lockHeld reports whether the lock at path belongs to a live process.
func lockHeld(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if time.Since(info.ModTime()) > lockLifetime {
		return false
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to inspect install lock owner", "pid", pid, "error", err)

		return true
	}

	return process != nil
}
