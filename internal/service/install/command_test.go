package install

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pgext-install/internal/artifact"
	"github.com/oshokin/pgext-install/internal/build"
	"github.com/oshokin/pgext-install/internal/config"
	"github.com/oshokin/pgext-install/internal/control"
	"github.com/oshokin/pgext-install/internal/domain/extension"
	"github.com/oshokin/pgext-install/internal/pgconfig"
	"github.com/oshokin/pgext-install/internal/repository/receipt"
	"github.com/oshokin/pgext-install/internal/sqlscript"
)

const (
	testPkgLibDir = "/usr/lib/postgresql/16/lib"
	testShareDir  = "/usr/share/postgresql/16"
)

var errNoAnswer = errors.New("no answer")

// fakeCargo emulates cargo by dropping a library into the target directory.
type fakeCargo struct {
	// targetDir receives {profile}/lib{name}.so on success.
	targetDir string
	// library is the file name written on success.
	library string
	// code is the exit status to report.
	code int
	// commands records every invocation.
	commands []*build.Command
}

// Run records cmd and writes the library when the exit status is zero.
func (f *fakeCargo) Run(_ context.Context, cmd *build.Command) (int, error) {
	f.commands = append(f.commands, cmd)
	if f.code != 0 {
		return f.code, nil
	}

	profile := "debug"
	for _, arg := range cmd.Args {
		if arg == "--release" {
			profile = "release"
		}
	}

	dir := filepath.Join(f.targetDir, profile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return -1, err
	}

	return 0, os.WriteFile(filepath.Join(dir, f.library), []byte("shared object"), 0o755)
}

// mapProber answers pg_config flags from a map and counts calls.
type mapProber struct {
	// answers maps flags to output.
	answers map[string]string
	// asked records every queried flag.
	asked []string
}

// Query returns the mapped answer or errNoAnswer.
func (m *mapProber) Query(_ context.Context, flag string) (string, error) {
	m.asked = append(m.asked, flag)

	value, ok := m.answers[flag]
	if !ok {
		return "", errNoAnswer
	}

	return value, nil
}

// defaultProber answers every flag the pipeline asks for.
func defaultProber() *mapProber {
	return &mapProber{answers: map[string]string{
		pgconfig.FlagPkgLibDir: testPkgLibDir,
		pgconfig.FlagShareDir:  testShareDir,
		pgconfig.FlagVersion:   "PostgreSQL 16.2",
	}}
}

// fixture is a project directory plus an empty staging root.
type fixture struct {
	// project holds the control file and SQL.
	project string
	// stage is the staging root.
	stage string
	// cargo is the fake build runner.
	cargo *fakeCargo
	// prober is the fake pg_config.
	prober *mapProber
	// out captures progress output.
	out *bytes.Buffer
}

// newFixture lays out a myext project with default_version 1.2.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("pg_config answers in these tests are POSIX paths")
	}

	project := t.TempDir()
	files := map[string]string{
		"myext.control":           "comment = 'test'\ndefault_version = '1.2'\n",
		"sql/load-order.txt":      "init.sql\n",
		"sql/init.sql":            "CREATE TABLE t();",
		"sql/myext--1.1--1.2.sql": "ALTER TABLE t ADD COLUMN c int;",
		"sql/helpers.sql":         "SELECT 1;",
	}

	for name, contents := range files {
		path := filepath.Join(project, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}

	return &fixture{
		project: project,
		stage:   t.TempDir(),
		cargo:   &fakeCargo{targetDir: filepath.Join(project, "target"), library: "libmyext.so"},
		prober:  defaultProber(),
		out:     new(bytes.Buffer),
	}
}

// options builds Options around the fixture's fakes.
func (f *fixture) options(cfg *config.Config) *Options {
	cfg.ProjectDir = f.project
	cfg.BaseDir = f.stage

	return &Options{
		Config: cfg,
		Output: f.out,
		Runner: f.cargo,
		Prober: f.prober,
	}
}

// extensionDir is the staged extension directory.
func (f *fixture) extensionDir() string {
	return filepath.Join(f.stage, "usr/share/postgresql/16/extension")
}

// TestRun_EndToEnd installs control file, library, generated script and upgrades.
func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	receiptPath := filepath.Join(f.stage, "receipt.yaml")

	require.NoError(t, Run(context.Background(), f.options(&config.Config{Receipt: receiptPath})))

	script, err := os.ReadFile(filepath.Join(f.extensionDir(), "myext--1.2.sql"))
	require.NoError(t, err)
	require.Equal(t, "--\n-- sql/init.sql\n--\nCREATE TABLE t();\n\n\n", string(script))

	ctl, err := os.ReadFile(filepath.Join(f.extensionDir(), "myext.control"))
	require.NoError(t, err)
	require.Contains(t, string(ctl), "default_version = '1.2'")

	lib, err := os.ReadFile(filepath.Join(f.stage, "usr/lib/postgresql/16/lib/myext.so"))
	require.NoError(t, err)
	require.Equal(t, "shared object", string(lib))

	_, err = os.Stat(filepath.Join(f.extensionDir(), "myext--1.1--1.2.sql"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.extensionDir(), "helpers.sql"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.Len(t, f.cargo.commands, 1)
	require.Equal(t, []string{"build", "--features", "pg16", "--no-default-features"}, f.cargo.commands[0].Args)
	require.Equal(t, f.project, f.cargo.commands[0].Dir)

	out := f.out.String()
	require.Contains(t, out, "control file to `")
	require.Contains(t, out, "shared library to `")
	require.Contains(t, out, "extension schema to `")
	require.Contains(t, out, "installing myext")

	rec, err := receipt.NewFileRepository(receiptPath).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "myext", rec.Extension)
	require.Equal(t, "1.2", rec.Version)
	require.Equal(t, "debug", rec.Profile)

	kinds := make([]string, 0, len(rec.Files))
	for _, file := range rec.Files {
		kinds = append(kinds, file.Kind)
		require.NotEmpty(t, file.Checksum)
	}

	require.Equal(t, []string{receipt.KindControl, receipt.KindLibrary, receipt.KindScript, receipt.KindUpgrade}, kinds)
}

// TestRun_ReleaseWithExplicitFeatures skips the version probe and passes --release.
func TestRun_ReleaseWithExplicitFeatures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	delete(f.prober.answers, pgconfig.FlagVersion)

	features := ""
	cfg := &config.Config{Release: true, Features: &features, Flags: []string{"--locked"}}

	require.NoError(t, Run(context.Background(), f.options(cfg)))
	require.Equal(t, []string{"build", "--release", "--locked"}, f.cargo.commands[0].Args)
	require.NotContains(t, f.prober.asked, pgconfig.FlagVersion)
}

// TestRun_BuildFailureCopiesNothing aborts before any artifact is written.
func TestRun_BuildFailureCopiesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cargo.code = 101

	err := Run(context.Background(), f.options(new(config.Config)))
	require.ErrorIs(t, err, build.ErrBuildFailed)

	entries, err := os.ReadDir(f.stage)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestRun_MissingVersion fails before building.
func TestRun_MissingVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.project, "myext.control"), []byte("comment = 'x'\n"), 0o644))

	err := Run(context.Background(), f.options(new(config.Config)))
	require.ErrorIs(t, err, control.ErrMissingVersionProperty)
	require.Empty(t, f.cargo.commands)
}

// TestRun_VersionWithPathSeparator refuses a version that would leave the extension directory.
func TestRun_VersionWithPathSeparator(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.project, "myext.control"), []byte("default_version = '../../x'\n"), 0o644))

	err := Run(context.Background(), f.options(new(config.Config)))
	require.ErrorIs(t, err, extension.ErrInvalidVersion)
	require.Empty(t, f.cargo.commands)
}

// TestRun_ProbeFailure surfaces a failed pg_config query.
func TestRun_ProbeFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	delete(f.prober.answers, pgconfig.FlagShareDir)

	err := Run(context.Background(), f.options(new(config.Config)))
	require.ErrorIs(t, err, pgconfig.ErrProbeFailed)
}

// TestRun_MissingFragment reports the unreadable load-order entry.
func TestRun_MissingFragment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.project, "sql", "load-order.txt"), []byte("init.sql\nmissing.sql\n"), 0o644))

	err := Run(context.Background(), f.options(new(config.Config)))

	var readErr *sqlscript.FragmentReadError
	require.ErrorAs(t, err, &readErr)
	require.Contains(t, readErr.File, "missing.sql")
}

// TestRun_ArtifactNotFound fails when cargo produced a differently named library.
func TestRun_ArtifactNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cargo.library = "libother.so"

	err := Run(context.Background(), f.options(new(config.Config)))
	require.ErrorIs(t, err, artifact.ErrArtifactNotFound)
}

// schemaFunc adapts a function to build.SchemaGenerator.
type schemaFunc func(ctx context.Context) error

// Generate calls the function.
func (fn schemaFunc) Generate(ctx context.Context) error {
	return fn(ctx)
}

// TestRun_SchemaRunsBeforeAssembly lets the schema step rewrite the load order.
func TestRun_SchemaRunsBeforeAssembly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	opts := f.options(new(config.Config))
	opts.Schema = schemaFunc(func(context.Context) error {
		sqlDir := filepath.Join(f.project, "sql")
		if err := os.WriteFile(filepath.Join(sqlDir, "generated.sql"), []byte("CREATE FUNCTION f();"), 0o644); err != nil {
			return err
		}

		return os.WriteFile(filepath.Join(sqlDir, "load-order.txt"), []byte("init.sql\ngenerated.sql\n"), 0o644)
	})

	require.NoError(t, Run(context.Background(), opts))

	script, err := os.ReadFile(filepath.Join(f.extensionDir(), "myext--1.2.sql"))
	require.NoError(t, err)
	require.Contains(t, string(script), "-- sql/generated.sql\n--\nCREATE FUNCTION f();")
}

// TestRun_Lock refuses to run while a live process holds the lock.
func TestRun_Lock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	targetDir := filepath.Join(f.project, "target")
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, LockFilename), []byte(pidString(os.Getppid())), 0o644))

	err := Run(context.Background(), f.options(&config.Config{Lock: true}))
	require.ErrorIs(t, err, ErrInstallInProgress)
	require.Empty(t, f.cargo.commands)
}

// memoryReceipts keeps saved receipts in memory.
type memoryReceipts struct {
	// saved holds every receipt passed to Save.
	saved []*receipt.Receipt
}

// Load returns the last saved receipt.
func (m *memoryReceipts) Load(context.Context) (*receipt.Receipt, error) {
	if len(m.saved) == 0 {
		return nil, receipt.ErrNotFound
	}

	return m.saved[len(m.saved)-1], nil
}

// Save records r.
func (m *memoryReceipts) Save(_ context.Context, r *receipt.Receipt) error {
	m.saved = append(m.saved, r)

	return nil
}

// TestRun_InjectedReceiptRepository stores the receipt through the supplied repository.
func TestRun_InjectedReceiptRepository(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	receipts := new(memoryReceipts)

	opts := f.options(&config.Config{Release: true})
	opts.Receipts = receipts

	require.NoError(t, Run(context.Background(), opts))
	require.Len(t, receipts.saved, 1)

	rec, err := receipts.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "release", rec.Profile)
	require.Equal(t, f.stage, rec.BaseDir)
	require.Len(t, rec.Files, 4)
	require.Equal(t, filepath.Join(f.stage, "usr/lib/postgresql/16/lib/myext.so"), rec.Files[1].Path)
}

// TestRun_NilOptions rejects a missing configuration.
func TestRun_NilOptions(t *testing.T) {
	t.Parallel()

	require.Error(t, Run(context.Background(), nil))
	require.Error(t, Run(context.Background(), new(Options)))
}
