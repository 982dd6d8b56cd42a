package build

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Command describes one subprocess invocation.
type Command struct {
	// Name is the executable, resolved through PATH when it has no separator.
	Name string
	// Args excludes the executable itself.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// String renders the command line for progress output.
func (c *Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, part := range append([]string{c.Name}, c.Args...) {
		if part == "" || strings.ContainsAny(part, " \t\"'") {
			part = strconv.Quote(part)
		}

		parts = append(parts, part)
	}

	return strings.Join(parts, " ")
}

// Runner starts a command and waits for it.
// It returns the exit code; err is reserved for failures to start or wait.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (int, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner forwarding child output to stdout and stderr.
// Nil writers fall back to the process streams.
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	if stdout == nil {
		stdout = os.Stdout
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	return &ExecRunner{
		Stdout: stdout,
		Stderr: stderr,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c *Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}
