// Package install runs the full extension install pipeline:
//
//	build -> probe pg_config -> locate library -> copy control file
//	-> copy library -> generate schema -> assemble versioned script
//	-> stage upgrade scripts
//
// Steps run strictly in that order and the first failure aborts the run.
// Nothing is rolled back; files already copied stay where they are.
// Concurrent installs into the same tree are not coordinated unless the
// optional lock is enabled.
package install
