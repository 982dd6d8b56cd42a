package install

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// deadPID is far above any default pid_max.
const deadPID = 1 << 30

// pidString renders a PID as written into the lock file.
func pidString(pid int) string {
	return strconv.Itoa(pid)
}

// TestAcquireLock_WritesAndReleases creates the marker with our PID and removes it on release.
func TestAcquireLock_WritesAndReleases(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "target")

	release, err := acquireLock(context.Background(), dir)
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(dir, LockFilename))
	require.NoError(t, err)
	require.Equal(t, pidString(os.Getpid()), string(contents))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	release()

	_, err = os.Stat(filepath.Join(dir, LockFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestAcquireLock_HeldByLiveProcess refuses a lock owned by a running PID.
func TestAcquireLock_HeldByLiveProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LockFilename), []byte(pidString(os.Getppid())), 0o644))

	_, err := acquireLock(context.Background(), dir)
	require.ErrorIs(t, err, ErrInstallInProgress)
}

// TestAcquireLock_TakesOverStale replaces locks from dead, garbage or expired owners.
func TestAcquireLock_TakesOverStale(t *testing.T) {
	t.Parallel()

	for name, setup := range map[string]func(path string){
		"dead pid": func(path string) {
			require.NoError(t, os.WriteFile(path, []byte(pidString(deadPID)), 0o644))
		},
		"garbage": func(path string) {
			require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o644))
		},
		"expired": func(path string) {
			require.NoError(t, os.WriteFile(path, []byte(pidString(os.Getppid())), 0o644))

			old := time.Now().Add(-2 * lockLifetime)
			require.NoError(t, os.Chtimes(path, old, old))
		},
	} {
		dir := t.TempDir()
		path := filepath.Join(dir, LockFilename)
		setup(path)

		release, err := acquireLock(context.Background(), dir)
		require.NoError(t, err, name)

		contents, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, pidString(os.Getpid()), string(contents), name)

		release()
	}
}

// TestDiscardStaleLock_KeepsReplacement puts back a marker that a live process wrote after the stale one was inspected.
func TestDiscardStaleLock_KeepsReplacement(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, LockFilename)
	require.NoError(t, os.WriteFile(path, []byte(pidString(os.Getppid())), 0o644))

	err := discardStaleLock(context.Background(), path)
	require.ErrorIs(t, err, ErrInstallInProgress)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, pidString(os.Getppid()), string(contents))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestDiscardStaleLock_AlreadyGone treats a marker removed by another process as discarded.
func TestDiscardStaleLock_AlreadyGone(t *testing.T) {
	t.Parallel()

	require.NoError(t, discardStaleLock(context.Background(), filepath.Join(t.TempDir(), LockFilename)))
}
