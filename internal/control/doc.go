// Package control finds and reads the extension control file.
//
// Control files are plain `key = value` lists; values may be wrapped in
// single quotes and lines starting with # are comments. Only the properties
// the installer needs are interpreted, everything else is kept as raw text.
package control
