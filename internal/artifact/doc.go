// Package artifact finds the compiled shared library in cargo's build output.
//
// Matching is deliberately loose: a candidate must start with "lib", end with
// one of the platform library suffixes and contain the extension name
// anywhere, which tolerates ABI or hash suffixes in file names. Two
// extensions whose names share a substring can therefore match each other's
// libraries when built into the same target directory. Strict mode turns
// that situation into an error instead of picking the first candidate.
package artifact
