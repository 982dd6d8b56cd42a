// Package build invokes the external toolchain: `cargo build` for the
// extension itself and an optional schema generation command.
//
// Processes are started through the Runner capability so the install
// pipeline can be exercised without spawning anything. The real runner
// inherits the caller's output streams and reports only the exit status;
// output is never captured or parsed.
package build
