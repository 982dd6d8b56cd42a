// Package extension defines the domain types shared by the install pipeline:
// the build profile, the extension identity and the install destination.
package extension
