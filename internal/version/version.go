package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	defaultVersion   = "0.1.0"
	defaultCommit    = "none"
	defaultBuildTime = "unknown"

	// develModuleVersion is what the go command reports for a build of the main module's working tree.
	develModuleVersion = "(devel)"

	shortRevisionLength = 12
)

var (
	// Version is the semantic version of the installer. It can be overridden via ldflags.
	Version = defaultVersion
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = defaultCommit
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = defaultBuildTime
)

// Info is resolved build metadata.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Current returns the ldflags values. Values left at their defaults are taken
// from the build information the go command embeds, which is all a binary
// built with `go install module@version` has.
func Current() Info {
	return withBuildInfo(Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
	}, debug.ReadBuildInfo)
}

func withBuildInfo(info Info, read func() (*debug.BuildInfo, bool)) Info {
	build, ok := read()
	if !ok || build == nil {
		return info
	}

	if info.Version == defaultVersion && build.Main.Version != "" && build.Main.Version != develModuleVersion {
		info.Version = strings.TrimPrefix(build.Main.Version, "v")
	}

	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == defaultCommit && setting.Value != "" {
				info.Commit = setting.Value[:min(len(setting.Value), shortRevisionLength)]
			}
		case "vcs.time":
			if info.BuildTime == defaultBuildTime && setting.Value != "" {
				info.BuildTime = setting.Value
			}
		}
	}

	return info
}

// Short returns only the semantic version string.
func Short() string {
	return Current().Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	info := Current()

	return fmt.Sprintf("pgext-install %s (commit %s, built %s)", info.Version, info.Commit, info.BuildTime)
}
