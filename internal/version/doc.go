// Package version exposes build metadata for pgext-install.
//
// Version, Commit and BuildTime are injected via -ldflags. Whatever is left
// at its default is filled from the build information the go command embeds
// (module version, vcs.revision, vcs.time). The version is also stamped into
// install receipts.
package version
