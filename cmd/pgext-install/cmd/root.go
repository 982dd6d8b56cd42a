package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pgext-install/internal/config"
	"github.com/oshokin/pgext-install/internal/logger"
	"github.com/oshokin/pgext-install/internal/service/install"
	"github.com/oshokin/pgext-install/internal/version"
)

const (
	flagConfig         = "config"
	flagPgConfig       = "pg-config"
	flagRelease        = "release"
	flagBaseDir        = "base-dir"
	flagProjectDir     = "project-dir"
	flagTargetDir      = "target-dir"
	flagFeatures       = "features"
	flagStrictArtifact = "strict-artifact"
	flagReceipt        = "receipt"
	flagLock           = "lock"
	flagLogLevel       = "log-level"
	flagSaveConfig     = "save-config"
)

// errUnknownLogLevel is returned for a --log-level value zap does not know.
var errUnknownLogLevel = errors.New("unknown log level")

// rootCmd builds the extension in the working directory and installs it.
var rootCmd = &cobra.Command{
	Use:   "pgext-install",
	Short: "Build a Postgres extension with cargo and install it",
	Long: "Build the extension crate with cargo, then copy its control file and shared library " +
		"into the directories reported by pg_config, assemble the versioned SQL script from " +
		"the load order and stage upgrade scripts next to it. Use --base-dir to install into " +
		"a staging root instead of the live filesystem.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		if err := applyLogLevel(cmd); err != nil {
			return err
		}

		cfg, err := resolveConfig(cmd, os.LookupEnv)
		if err != nil {
			return err
		}

		savePath, err := cmd.Flags().GetString(flagSaveConfig)
		if err != nil {
			return err
		}

		if savePath != "" {
			if err = config.Save(savePath, cfg); err != nil {
				return err
			}

			logger.InfoKV(ctx, "Saved settings", "path", savePath)
		}

		options := &install.Options{
			Config: cfg,
			Output: cmd.OutOrStdout(),
		}

		return install.Run(ctx, options)
	},
}

// Execute runs the pgext-install CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(context.Background(), err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	registerFlags(rootCmd)
}

// registerFlags declares the installer flags on cmd.
func registerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringP(flagConfig, "c", config.DefaultConfigFilename, "path to settings file (optional unless given explicitly)")
	flags.String(flagPgConfig, config.DefaultPgConfig, "pg_config binary to query for install directories")
	flags.BoolP(flagRelease, "r", false, "build and install the release profile")
	flags.StringP(flagBaseDir, "b", config.DefaultBaseDir, "staging root to install under")
	flags.StringP(flagProjectDir, "p", config.DefaultProjectDir, "extension project directory")
	flags.String(flagTargetDir, "", "cargo target directory (defaults to cargo's own resolution)")
	flags.String(flagFeatures, "", "cargo features to build with instead of pg{major}; empty disables features")
	flags.Bool(flagStrictArtifact, false, "fail when more than one library matches the extension name")
	flags.String(flagReceipt, "", "write an install receipt to this path")
	flags.Bool(flagLock, false, "refuse to run while another install holds the target directory")
	flags.String(flagLogLevel, "info", "log level: debug, info, warn or error")
	flags.String(flagSaveConfig, "", "save the resolved settings to this path before installing")
}

// applyLogLevel sets the global logger level from --log-level.
func applyLogLevel(cmd *cobra.Command) error {
	value, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return err
	}

	level, ok := logger.ParseLogLevel(value)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownLogLevel, value)
	}

	logger.SetLevel(level)

	return nil
}

// resolveConfig layers settings: file, then environment, then explicitly set flags.
// The settings file may be absent unless --config was given.
func resolveConfig(cmd *cobra.Command, lookup config.LookupFunc) (*config.Config, error) {
	flags := cmd.Flags()

	path, err := flags.GetString(flagConfig)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path, !flags.Changed(flagConfig))
	if err != nil {
		return nil, err
	}

	config.ApplyEnv(cfg, lookup)

	stringFlags := map[string]*string{
		flagPgConfig:   &cfg.PgConfig,
		flagBaseDir:    &cfg.BaseDir,
		flagProjectDir: &cfg.ProjectDir,
		flagTargetDir:  &cfg.TargetDir,
		flagReceipt:    &cfg.Receipt,
	}

	for name, target := range stringFlags {
		if !flags.Changed(name) {
			continue
		}

		if *target, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	boolFlags := map[string]*bool{
		flagRelease:        &cfg.Release,
		flagStrictArtifact: &cfg.StrictArtifact,
		flagLock:           &cfg.Lock,
	}

	for name, target := range boolFlags {
		if !flags.Changed(name) {
			continue
		}

		if *target, err = flags.GetBool(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed(flagFeatures) {
		features, featuresErr := flags.GetString(flagFeatures)
		if featuresErr != nil {
			return nil, featuresErr
		}

		cfg.Features = &features
	}

	return cfg, nil
}
