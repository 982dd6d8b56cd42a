// Package config defines the installer settings and how they are assembled:
// an optional YAML file, then the process environment (read once, at the
// boundary), then command-line flags.
//
// The Config type is plain data. Nothing below the CLI reads the environment;
// build and install code receive resolved values only.
package config
