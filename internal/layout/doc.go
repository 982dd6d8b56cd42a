// Package layout computes where install artifacts land.
//
// Paths reported by pg_config are absolute. Relocate turns them into paths
// relative to the filesystem root so they can be re-joined under any staging
// directory, which is how packagers build an image of the install tree
// without touching the real prefix.
package layout
