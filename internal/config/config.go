package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/pgext-install/internal/build"
	"github.com/oshokin/pgext-install/internal/loadorder"
	"github.com/oshokin/pgext-install/internal/pgconfig"
)

// Config holds installer settings.
type Config struct {
	// PgConfig is the pg_config binary to probe.
	PgConfig string `yaml:"pg_config"`
	// Release builds and installs the release profile.
	Release bool `yaml:"release"`
	// BaseDir is the staging root the install tree is placed under.
	BaseDir string `yaml:"base_dir"`
	// ProjectDir holds the control file, Cargo.toml and the SQL directory.
	ProjectDir string `yaml:"project_dir"`
	// TargetDir overrides cargo's target directory.
	TargetDir string `yaml:"target_dir,omitempty"`
	// SQLDir holds SQL fragments and upgrade scripts, relative to ProjectDir.
	SQLDir string `yaml:"sql_dir"`
	// LoadOrder is the fragment manifest, relative to ProjectDir.
	LoadOrder string `yaml:"load_order"`
	// Cargo is the cargo binary.
	Cargo string `yaml:"cargo"`
	// Features overrides the cargo features; nil selects pg{major}.
	Features *string `yaml:"features,omitempty"`
	// Flags are extra cargo arguments.
	Flags []string `yaml:"flags,omitempty"`
	// SchemaCommand regenerates SQL fragments before assembly.
	SchemaCommand string `yaml:"schema_command,omitempty"`
	// StrictArtifact rejects ambiguous library matches.
	StrictArtifact bool `yaml:"strict_artifact"`
	// Receipt, when set, is where the install receipt is written.
	Receipt string `yaml:"receipt,omitempty"`
	// Lock guards the target directory against concurrent installs.
	Lock bool `yaml:"lock"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the working directory.
	DefaultConfigFilename = "pgext-install.yaml"

	// DefaultPgConfig is resolved through PATH.
	DefaultPgConfig = pgconfig.DefaultBinary

	// DefaultBaseDir installs into the real filesystem.
	DefaultBaseDir = "/"

	// DefaultProjectDir is the working directory.
	DefaultProjectDir = "."

	// DefaultSQLDir is the fragments directory inside the project.
	DefaultSQLDir = "sql"

	// DefaultLoadOrder is the manifest inside the project.
	DefaultLoadOrder = loadorder.DefaultManifest

	// DefaultCargo is resolved through PATH.
	DefaultCargo = build.DefaultCargo

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o644
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Load reads settings from path. When optional is true a missing file yields
// an empty configuration instead of an error.
func Load(path string, optional bool) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return new(Config), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and expands ~ in user supplied paths.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	setDefault(&cfg.PgConfig, DefaultPgConfig)
	setDefault(&cfg.BaseDir, DefaultBaseDir)
	setDefault(&cfg.ProjectDir, DefaultProjectDir)
	setDefault(&cfg.SQLDir, DefaultSQLDir)
	setDefault(&cfg.LoadOrder, DefaultLoadOrder)
	setDefault(&cfg.Cargo, DefaultCargo)

	for _, p := range []*string{&cfg.PgConfig, &cfg.BaseDir, &cfg.ProjectDir, &cfg.TargetDir, &cfg.Receipt} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}

		*p = expanded
	}

	return nil
}

// SQLPath returns the fragments directory resolved against the project directory.
func (c *Config) SQLPath() string {
	return c.inProject(c.SQLDir)
}

// LoadOrderPath returns the manifest path resolved against the project directory.
func (c *Config) LoadOrderPath() string {
	return c.inProject(c.LoadOrder)
}

func (c *Config) inProject(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(c.ProjectDir, p)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
