package config

import "strings"

// Environment variables mapped into Config.
const (
	// EnvBuildFeatures replaces the default pg{major} cargo feature. Set but blank disables features.
	EnvBuildFeatures = "PGX_BUILD_FEATURES"
	// EnvBuildFlags holds extra cargo arguments separated by whitespace.
	EnvBuildFlags = "PGX_BUILD_FLAGS"
	// EnvCargo names the cargo binary, as cargo itself sets it for subcommands.
	EnvCargo = "CARGO"
	// EnvTargetDir is cargo's target directory override.
	EnvTargetDir = "CARGO_TARGET_DIR"
)

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment values onto cfg. It is the only place the
// installer consults the environment.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if value, ok := lookup(EnvBuildFeatures); ok {
		features := value
		cfg.Features = &features
	}

	if value, ok := lookup(EnvBuildFlags); ok {
		cfg.Flags = strings.Fields(value)
	}

	if value, ok := lookup(EnvCargo); ok && value != "" {
		cfg.Cargo = value
	}

	if value, ok := lookup(EnvTargetDir); ok && value != "" {
		cfg.TargetDir = value
	}
}
