// Package receipt persists a record of what an install wrote.
//
// A receipt lists every installed file with its SHA-512 checksum, so a
// packager can verify a staged tree or a later run can tell which files it
// owns. Receipts are YAML, like the rest of the installer's on-disk state.
package receipt
