// Package fsutil holds the file copy primitive used for every installed
// artifact, along with the typed errors it reports.
package fsutil
