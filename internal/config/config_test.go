package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

// TestValidate_Defaults fills every default on an empty config.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))

	require.Equal(t, DefaultPgConfig, cfg.PgConfig)
	require.Equal(t, DefaultBaseDir, cfg.BaseDir)
	require.Equal(t, DefaultProjectDir, cfg.ProjectDir)
	require.Equal(t, DefaultSQLDir, cfg.SQLDir)
	require.Equal(t, DefaultLoadOrder, cfg.LoadOrder)
	require.Equal(t, DefaultCargo, cfg.Cargo)
	require.Nil(t, cfg.Features)
	require.Equal(t, filepath.Join("sql", "load-order.txt"), cfg.LoadOrderPath())

	require.Error(t, Validate(nil))
}

// TestValidate_ExpandsHome replaces a leading tilde.
func TestValidate_ExpandsHome(t *testing.T) {
	t.Parallel()

	home, err := homedir.Dir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg := &Config{BaseDir: "~/stage"}
	require.NoError(t, Validate(cfg))
	require.Equal(t, filepath.Join(home, "stage"), cfg.BaseDir)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	features := ""

	settings := &Config{
		PgConfig:   "/usr/lib/postgresql/16/bin/pg_config",
		Release:    true,
		BaseDir:    "/tmp/stage",
		ProjectDir: "/src/myext",
		Features:   &features,
		Flags:      []string{"--locked"},
		Lock:       true,
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path, false)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)
	require.NotNil(t, loaded.Features)
	require.Empty(t, *loaded.Features)
}

// TestLoad_Missing honors the optional switch.
func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "none.yaml")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, new(Config), cfg)

	_, err = Load(path, false)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestApplyEnv maps environment variables into fields.
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvBuildFeatures: "",
		EnvBuildFlags:    "  --locked\t-j 4 ",
		EnvCargo:         "/opt/cargo/bin/cargo",
		EnvTargetDir:     "/tmp/target",
	}

	cfg := new(Config)
	ApplyEnv(cfg, func(key string) (string, bool) {
		value, ok := env[key]

		return value, ok
	})

	require.NotNil(t, cfg.Features)
	require.Empty(t, *cfg.Features)
	require.Equal(t, []string{"--locked", "-j", "4"}, cfg.Flags)
	require.Equal(t, "/opt/cargo/bin/cargo", cfg.Cargo)
	require.Equal(t, "/tmp/target", cfg.TargetDir)

	untouched := new(Config)
	ApplyEnv(untouched, func(string) (string, bool) { return "", false })
	require.Nil(t, untouched.Features)
	require.Nil(t, untouched.Flags)
}

// TestResolveTargetDir covers override, cargo config and default.
func TestResolveTargetDir(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	cfg := &Config{ProjectDir: project}

	dir, err := cfg.ResolveTargetDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(project, "target"), dir)

	require.NoError(t, os.MkdirAll(filepath.Join(project, ".cargo"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(project, ".cargo", "config.toml"),
		[]byte("[build]\ntarget-dir = \"out/cargo\"\n"),
		0o644,
	))

	dir, err = cfg.ResolveTargetDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(project, "out", "cargo"), dir)

	cfg.TargetDir = "/abs/target"
	dir, err = cfg.ResolveTargetDir()
	require.NoError(t, err)
	require.Equal(t, "/abs/target", dir)
}

// TestResolveTargetDir_BadToml reports a parse error.
func TestResolveTargetDir_BadToml(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".cargo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, ".cargo", "config.toml"), []byte("[build\n"), 0o644))

	_, err := (&Config{ProjectDir: project}).ResolveTargetDir()
	require.Error(t, err)
}
